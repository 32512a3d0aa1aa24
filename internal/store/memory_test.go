package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/luckygrid/platform/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedProfile(t *testing.T, m *Memory, balance int64) uuid.UUID {
	t.Helper()
	id := uuid.New()
	m.PutProfile(domain.Profile{ID: id, Email: id.String() + "@example.com", TokenBalance: balance})
	return id
}

func TestMemory_CreateGameCompletesPreviousActive(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	first, err := m.CreateGame(ctx, 20)
	require.NoError(t, err)
	second, err := m.CreateGame(ctx, 30)
	require.NoError(t, err)

	active, err := m.ActiveGame(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, second.ID, active.ID)

	old, err := m.GetGame(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.GameCompleted, old.Status)
}

func TestMemory_InsertPicksIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	g, err := m.CreateGame(ctx, 20)
	require.NoError(t, err)
	user := seedProfile(t, m, 10)

	_, err = m.InsertPicks(ctx, g.ID, user, []int{3})
	require.NoError(t, err)

	_, err = m.InsertPicks(ctx, g.ID, user, []int{4, 3, 5})
	var taken *domain.NumberTakenError
	require.ErrorAs(t, err, &taken)
	assert.Equal(t, 3, taken.Number)

	count, err := m.CountPicks(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	claimed, err := m.ClaimedNumbers(ctx, g.ID, []int{3, 4, 5})
	require.NoError(t, err)
	assert.Equal(t, []int{3}, claimed)
}

func TestMemory_InsertPicksRequiresActiveGame(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	g, err := m.CreateGame(ctx, 5)
	require.NoError(t, err)

	closed, err := m.CloseGame(ctx, g.ID, 0)
	require.NoError(t, err)
	assert.True(t, closed)

	_, err = m.InsertPicks(ctx, g.ID, uuid.New(), []int{1})
	assert.True(t, domain.IsKind(err, domain.CodeNoActiveGame))

	again, err := m.CloseGame(ctx, g.ID, 0)
	require.NoError(t, err)
	assert.False(t, again)
}

func TestMemory_ConcurrentPicksClaimEachNumberOnce(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	g, err := m.CreateGame(ctx, 10)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.InsertPicks(ctx, g.ID, uuid.New(), []int{7}); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestMemory_MarkRevealed(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	g, err := m.CreateGame(ctx, 10)
	require.NoError(t, err)

	revealed, err := m.MarkRevealed(ctx, g.ID, 4)
	require.NoError(t, err)
	require.NotNil(t, revealed)
	assert.Equal(t, domain.GameRevealed, revealed.Status)
	require.NotNil(t, revealed.WinningNumber)
	assert.Equal(t, 4, *revealed.WinningNumber)
	assert.NotNil(t, revealed.RevealedAt)

	twice, err := m.MarkRevealed(ctx, g.ID, 5)
	require.NoError(t, err)
	assert.Nil(t, twice)

	latest, err := m.LatestRevealable(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestMemory_ReserveAndDebit(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	g, err := m.CreateGame(ctx, 20)
	require.NoError(t, err)
	user := seedProfile(t, m, 3)

	picks, p, err := m.ReserveAndDebit(ctx, g.ID, user, []int{4, 8}, nil)
	require.NoError(t, err)
	assert.Len(t, picks, 2)
	assert.Equal(t, int64(1), p.TokenBalance)

	_, _, err = m.ReserveAndDebit(ctx, g.ID, user, []int{10, 11}, nil)
	assert.True(t, domain.IsKind(err, domain.CodeInsufficientTokens))

	_, _, err = m.ReserveAndDebit(ctx, g.ID, uuid.New(), []int{12}, nil)
	assert.True(t, domain.IsKind(err, domain.CodeProfileUnavailable))

	var taken *domain.NumberTakenError
	_, _, err = m.ReserveAndDebit(ctx, g.ID, user, []int{8}, nil)
	require.ErrorAs(t, err, &taken)

	// Rejected attempts leave no picks and no ledger entries.
	claimed, err := m.ClaimedNumbers(ctx, g.ID, []int{4, 8, 10, 11, 12})
	require.NoError(t, err)
	assert.Equal(t, []int{4, 8}, claimed)

	entries := m.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, domain.TokenDebit, entries[0].Type)
	assert.Equal(t, domain.SourcePickReservation, entries[0].Source)
	assert.Equal(t, int64(2), entries[0].Amount)
	assert.Equal(t, int64(1), entries[0].BalanceAfter)

	bal, err := m.GetProfile(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(1), bal.TokenBalance)
}

func TestMemory_CreditTokensIdempotentByRef(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	user := seedProfile(t, m, 0)
	params := domain.CreditParams{ProfileID: user, Amount: 5, Source: domain.SourceAdminGrant, ExternalRef: "grant-1"}

	first, err := m.CreditTokens(ctx, params)
	require.NoError(t, err)
	assert.False(t, first.Idempotent)
	assert.Equal(t, int64(5), first.Profile.TokenBalance)

	second, err := m.CreditTokens(ctx, params)
	require.NoError(t, err)
	assert.True(t, second.Idempotent)
	assert.Equal(t, int64(5), second.Profile.TokenBalance)
	assert.Equal(t, first.Entry.ID, second.Entry.ID)

	_, err = m.CreditTokens(ctx, domain.CreditParams{ProfileID: user, Amount: 0, Source: domain.SourceAdminGrant})
	assert.True(t, domain.IsKind(err, domain.CodeValidation))
}

func TestMemory_StartSessionChargesOneToken(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	user := seedProfile(t, m, 1)

	s, err := m.StartSession(ctx, user, 3)
	require.NoError(t, err)
	assert.True(t, s.IsActive)
	assert.Equal(t, 3, s.AttemptsRemaining)

	_, err = m.StartSession(ctx, user, 3)
	var appErr *domain.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, domain.CodeSessionAlreadyActive, appErr.Code)

	p, err := m.GetProfile(ctx, user)
	require.NoError(t, err)
	assert.Zero(t, p.TokenBalance)
}

func TestMemory_ApplyPullGuardsAttemptCount(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	user := seedProfile(t, m, 1)
	s, err := m.StartSession(ctx, user, 2)
	require.NoError(t, err)

	stale := domain.SessionPull{SessionID: s.ID, UserID: user, PrevAttempts: 5, Attempts: 4, IsActive: true}
	got, err := m.ApplyPull(ctx, stale)
	require.NoError(t, err)
	assert.Nil(t, got)

	end := time.Now().UTC()
	dur := int64(1500)
	cat := domain.CategorySmall
	name := "Free Coffee"
	won := domain.SessionPull{
		SessionID: s.ID, UserID: user, PrevAttempts: 2, Attempts: 1,
		HasWonPrize: true, RewardWonName: &name, RewardCategory: &cat,
		EndTime: &end, DurationMs: &dur,
	}
	got, err = m.ApplyPull(ctx, won)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.IsActive)

	p, err := m.GetProfile(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 1, p.TotalWins)

	fastest, err := m.FastestWins(ctx, domain.CategorySmall, 10)
	require.NoError(t, err)
	require.Len(t, fastest, 1)
	assert.Equal(t, "Free Coffee", fastest[0].RewardName)
	assert.Equal(t, int64(1500), fastest[0].DurationMs)
}

func TestMemory_RecordPaymentOncePerReference(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	user := seedProfile(t, m, 0)
	pay := func() *domain.Payment {
		return &domain.Payment{
			ProfileID: user, Provider: "paystack", Reference: "ref-1",
			AmountMinor: 50000, Currency: "NGN", Tokens: 10, Status: domain.PaymentStatusCompleted,
		}
	}

	first, err := m.RecordPayment(ctx, pay())
	require.NoError(t, err)
	assert.False(t, first.Idempotent)
	assert.Equal(t, int64(10), first.Profile.TokenBalance)

	second, err := m.RecordPayment(ctx, pay())
	require.NoError(t, err)
	assert.True(t, second.Idempotent)
	assert.Equal(t, int64(10), second.Profile.TokenBalance)

	views, err := m.ListPayments(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "N/A", views[0].UserName)

	stats, err := m.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), stats.TotalRevenue)
	assert.Equal(t, int64(10), stats.TokensInCirculation)
	assert.Equal(t, 1, stats.TotalUsers)
}

func TestMemory_TopWinnersOrdering(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	a := uuid.New()
	b := uuid.New()
	m.PutProfile(domain.Profile{ID: a, Name: "Ada", TotalWins: 1})
	m.PutProfile(domain.Profile{ID: b, Name: "Bo", TotalWins: 4})

	top, err := m.TopWinners(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, b, top[0].UserID)
	assert.Equal(t, 4, top[0].TotalWins)
}

func TestPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	assert.Equal(t, []int{2, 3}, page(items, 2, 1))
	assert.Equal(t, []int{}, page(items, 2, 9))
	assert.Equal(t, items, page(items, 0, -1))
}
