package grid_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/luckygrid/platform/internal/domain"
	"github.com/luckygrid/platform/internal/grid"
	"github.com/luckygrid/platform/internal/infra"
	"github.com/luckygrid/platform/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastRetry() infra.RetryPolicy {
	return infra.RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

type recordingNotifier struct {
	mu     sync.Mutex
	calls  [][]int
	closed []int
}

func (n *recordingNotifier) PicksReserved(_ domain.Claimant, _ *domain.Game, numbers []int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, numbers)
}

func (n *recordingNotifier) GameClosed(_ *domain.Game, totalPicks int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = append(n.closed, totalPicks)
}

type fixture struct {
	mem    *store.Memory
	game   *domain.Game
	engine *grid.Engine
	notify *recordingNotifier
}

func newFixture(t *testing.T, gameRange int) *fixture {
	t.Helper()
	mem := store.NewMemory()
	game, err := mem.CreateGame(context.Background(), gameRange)
	require.NoError(t, err)
	n := &recordingNotifier{}
	return &fixture{
		mem:    mem,
		game:   game,
		notify: n,
		engine: grid.NewEngine(mem, noopLogger(), grid.WithNotifier(n), grid.WithRetryPolicy(fastRetry())),
	}
}

func (f *fixture) user(balance int64) domain.Claimant {
	id := uuid.New()
	f.mem.PutProfile(domain.Profile{ID: id, Email: id.String()[:8] + "@example.com", TokenBalance: balance})
	return domain.Claimant{UserID: id, Email: id.String()[:8] + "@example.com"}
}

func (f *fixture) balance(t *testing.T, c domain.Claimant) int64 {
	t.Helper()
	p, err := f.mem.GetProfile(context.Background(), c.UserID)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p.TokenBalance
}

func (f *fixture) status(t *testing.T) domain.GameStatus {
	t.Helper()
	g, err := f.mem.GetGame(context.Background(), f.game.ID)
	require.NoError(t, err)
	return g.Status
}

func TestReservePicks_DeduplicatesAndChargesReservedCount(t *testing.T) {
	f := newFixture(t, 20)
	alice := f.user(3)

	res, err := f.engine.ReservePicks(context.Background(), alice, []int{5, 5, 9})
	require.NoError(t, err)

	assert.Equal(t, 2, res.CostCharged)
	assert.Equal(t, []int{5, 9}, res.Numbers())
	assert.Equal(t, int64(1), res.Balance)
	assert.Equal(t, int64(1), f.balance(t, alice))
	assert.False(t, res.GameClosed)
	assert.Equal(t, [][]int{{5, 9}}, f.notify.calls)
}

func TestReservePicks_SecondClaimantLosesNumber(t *testing.T) {
	f := newFixture(t, 20)
	alice, bob := f.user(3), f.user(3)

	_, err := f.engine.ReservePicks(context.Background(), alice, []int{5, 9})
	require.NoError(t, err)

	_, err = f.engine.ReservePicks(context.Background(), bob, []int{9})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.CodeAllNumbersClaimed))
	assert.Equal(t, int64(3), f.balance(t, bob))
}

func TestReservePicks_PartialConflictChargesOnlyWinners(t *testing.T) {
	f := newFixture(t, 20)
	alice, bob := f.user(5), f.user(2)

	_, err := f.engine.ReservePicks(context.Background(), alice, []int{5})
	require.NoError(t, err)

	res, err := f.engine.ReservePicks(context.Background(), bob, []int{5, 6})
	require.NoError(t, err)
	assert.Equal(t, []int{6}, res.Numbers())
	assert.Equal(t, 1, res.CostCharged)
	assert.Equal(t, int64(1), f.balance(t, bob))
}

func TestReservePicks_AutoClosesFullGrid(t *testing.T) {
	f := newFixture(t, 2)
	alice, bob := f.user(1), f.user(1)

	res, err := f.engine.ReservePicks(context.Background(), alice, []int{1})
	require.NoError(t, err)
	assert.False(t, res.GameClosed)
	assert.Equal(t, domain.GameActive, f.status(t))

	res, err = f.engine.ReservePicks(context.Background(), bob, []int{2})
	require.NoError(t, err)
	assert.True(t, res.GameClosed)
	assert.Equal(t, domain.GameClosed, f.status(t))

	closedEvents := 0
	for _, e := range f.mem.Events() {
		if e.EventType == domain.EventGameClosed {
			closedEvents++
		}
	}
	assert.Equal(t, 1, closedEvents)
	assert.Equal(t, []int{2}, f.notify.closed)
}

func TestReservePicks_ValidationOrder(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(f *fixture) domain.Claimant
		numbers  []int
		wantCode string
	}{
		{
			name:     "empty payload",
			setup:    func(f *fixture) domain.Claimant { return f.user(5) },
			numbers:  nil,
			wantCode: domain.CodeInvalidInput,
		},
		{
			name:     "non-positive number",
			setup:    func(f *fixture) domain.Claimant { return f.user(5) },
			numbers:  []int{3, 0},
			wantCode: domain.CodeInvalidInput,
		},
		{
			name: "invalid input beats missing game",
			setup: func(f *fixture) domain.Claimant {
				_, _ = f.mem.CloseGame(context.Background(), f.game.ID, 0)
				return f.user(5)
			},
			numbers:  []int{-1},
			wantCode: domain.CodeInvalidInput,
		},
		{
			name: "no active game",
			setup: func(f *fixture) domain.Claimant {
				_, _ = f.mem.CloseGame(context.Background(), f.game.ID, 0)
				return f.user(5)
			},
			numbers:  []int{1},
			wantCode: domain.CodeNoActiveGame,
		},
		{
			name:     "out of range",
			setup:    func(f *fixture) domain.Claimant { return f.user(5) },
			numbers:  []int{1, 21},
			wantCode: domain.CodeOutOfRange,
		},
		{
			name:     "out of range beats missing profile",
			setup:    func(f *fixture) domain.Claimant { return domain.Claimant{UserID: uuid.New()} },
			numbers:  []int{99},
			wantCode: domain.CodeOutOfRange,
		},
		{
			name:     "missing profile",
			setup:    func(f *fixture) domain.Claimant { return domain.Claimant{UserID: uuid.New()} },
			numbers:  []int{1},
			wantCode: domain.CodeProfileUnavailable,
		},
		{
			name:     "insufficient tokens for unique count",
			setup:    func(f *fixture) domain.Claimant { return f.user(1) },
			numbers:  []int{1, 2},
			wantCode: domain.CodeInsufficientTokens,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 20)
			c := tt.setup(f)
			_, err := f.engine.ReservePicks(context.Background(), c, tt.numbers)
			require.Error(t, err)
			appErr, ok := domain.AsAppError(err)
			require.True(t, ok, "expected AppError, got %T", err)
			assert.Equal(t, tt.wantCode, appErr.Code)
			assert.Empty(t, f.notify.calls)
		})
	}
}

func TestReservePicks_BalanceCheckUsesUniqueCount(t *testing.T) {
	f := newFixture(t, 20)
	alice := f.user(2)

	res, err := f.engine.ReservePicks(context.Background(), alice, []int{3, 3, 4, 4})
	require.NoError(t, err)
	assert.Equal(t, 2, res.CostCharged)
	assert.Equal(t, int64(0), f.balance(t, alice))
}

// racingStore hides existing picks from the conflict scan once, so the insert
// itself hits the uniqueness constraint as it would under a real race.
type racingStore struct {
	*store.Memory
	mu     sync.Mutex
	hidden bool
}

func (s *racingStore) ClaimedNumbers(ctx context.Context, gameID uuid.UUID, numbers []int) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hidden {
		s.hidden = true
		return nil, nil
	}
	return s.Memory.ClaimedNumbers(ctx, gameID, numbers)
}

func TestReservePicks_InsertConflictReResolves(t *testing.T) {
	f := newFixture(t, 20)
	alice, bob := f.user(5), f.user(5)
	_, err := f.engine.ReservePicks(context.Background(), alice, []int{7})
	require.NoError(t, err)

	racing := &racingStore{Memory: f.mem}
	engine := grid.NewEngine(racing, noopLogger(), grid.WithRetryPolicy(fastRetry()))

	res, err := engine.ReservePicks(context.Background(), bob, []int{7, 8})
	require.NoError(t, err)
	assert.Equal(t, []int{8}, res.Numbers())
	assert.Equal(t, 1, res.CostCharged)
	assert.Equal(t, int64(4), f.balance(t, bob))

	holder, err := f.mem.PickByNumber(context.Background(), f.game.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, alice.UserID, holder.UserID)
}

func TestReservePicks_InsertConflictOnEveryNumber(t *testing.T) {
	f := newFixture(t, 20)
	alice, bob := f.user(5), f.user(5)
	_, err := f.engine.ReservePicks(context.Background(), alice, []int{7})
	require.NoError(t, err)

	engine := grid.NewEngine(&racingStore{Memory: f.mem}, noopLogger(), grid.WithRetryPolicy(fastRetry()))
	_, err = engine.ReservePicks(context.Background(), bob, []int{7})
	assert.True(t, domain.IsKind(err, domain.CodeAllNumbersClaimed))
	assert.Equal(t, int64(5), f.balance(t, bob))
}

// lostCommitStore applies the reservation and then reports the commit as
// unobserved, the way a connection dropped during COMMIT does.
type lostCommitStore struct {
	*store.Memory
}

func (s lostCommitStore) ReserveAndDebit(ctx context.Context, gameID, userID uuid.UUID, numbers []int, meta json.RawMessage) ([]domain.Pick, *domain.Profile, error) {
	if _, _, err := s.Memory.ReserveAndDebit(ctx, gameID, userID, numbers, meta); err != nil {
		return nil, nil, err
	}
	return nil, nil, fmt.Errorf("reserve picks: commit: %w: %w", domain.ErrCommitUnknown, errors.New("connection reset by peer"))
}

func TestReservePicks_LostCommitIsCritical(t *testing.T) {
	f := newFixture(t, 20)
	alice := f.user(5)
	n := &recordingNotifier{}
	engine := grid.NewEngine(lostCommitStore{f.mem}, noopLogger(), grid.WithNotifier(n), grid.WithRetryPolicy(fastRetry()))

	_, err := engine.ReservePicks(context.Background(), alice, []int{1, 2})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.CodeCriticalDebitFailure))

	// Picks and debit committed together; nothing is retried or announced.
	picks, err := f.mem.ListPicks(context.Background(), f.game.ID)
	require.NoError(t, err)
	assert.Len(t, picks, 2)
	assert.Equal(t, int64(3), f.balance(t, alice))
	assert.Empty(t, n.calls)
}

// slowStore widens the window between the balance pre-check and the write.
type slowStore struct {
	*store.Memory
	delay time.Duration
}

func (s slowStore) ReserveAndDebit(ctx context.Context, gameID, userID uuid.UUID, numbers []int, meta json.RawMessage) ([]domain.Pick, *domain.Profile, error) {
	time.Sleep(s.delay)
	return s.Memory.ReserveAndDebit(ctx, gameID, userID, numbers, meta)
}

func TestReservePicks_OverdrawRollsBackPicks(t *testing.T) {
	f := newFixture(t, 20)
	alice := f.user(3)
	engine := grid.NewEngine(slowStore{Memory: f.mem, delay: 20 * time.Millisecond}, noopLogger(), grid.WithRetryPolicy(fastRetry()))

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 1; i <= 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := engine.ReservePicks(context.Background(), alice, []int{n})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	ok, insufficient := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case domain.IsKind(err, domain.CodeInsufficientTokens):
			insufficient++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 3, ok)
	assert.Equal(t, 7, insufficient)
	assert.Zero(t, f.balance(t, alice))

	picks, err := f.mem.ListPicks(context.Background(), f.game.ID)
	require.NoError(t, err)
	assert.Len(t, picks, 3)
}

type flakyStore struct {
	*store.Memory
	mu       sync.Mutex
	failures int
	calls    int
}

func (s *flakyStore) ActiveGame(ctx context.Context) (*domain.Game, error) {
	s.mu.Lock()
	s.calls++
	fail := s.calls <= s.failures
	s.mu.Unlock()
	if fail {
		return nil, domain.Transient(errors.New("database waking up"))
	}
	return s.Memory.ActiveGame(ctx)
}

func TestReservePicks_RetriesTransientReads(t *testing.T) {
	f := newFixture(t, 20)
	alice := f.user(2)
	flaky := &flakyStore{Memory: f.mem, failures: 2}
	engine := grid.NewEngine(flaky, noopLogger(), grid.WithRetryPolicy(fastRetry()))

	res, err := engine.ReservePicks(context.Background(), alice, []int{4})
	require.NoError(t, err)
	assert.Equal(t, 1, res.CostCharged)
	assert.Equal(t, 3, flaky.calls)
}

func TestReservePicks_TransientExhaustionIsStoreUnavailable(t *testing.T) {
	f := newFixture(t, 20)
	alice := f.user(2)
	engine := grid.NewEngine(&flakyStore{Memory: f.mem, failures: 100}, noopLogger(), grid.WithRetryPolicy(fastRetry()))

	_, err := engine.ReservePicks(context.Background(), alice, []int{4})
	require.Error(t, err)
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeStoreUnavailable, appErr.Code)
	assert.Equal(t, 503, appErr.Status)
	assert.NotContains(t, appErr.Message, "waking")
}

func TestCheckAutoClose_Idempotent(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	full, err := f.engine.CheckAutoClose(ctx, f.game)
	require.NoError(t, err)
	assert.False(t, full)

	_, err = f.mem.InsertPicks(ctx, f.game.ID, uuid.New(), []int{1, 2})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		full, err = f.engine.CheckAutoClose(ctx, f.game)
		require.NoError(t, err)
		assert.True(t, full)
		assert.Equal(t, domain.GameClosed, f.status(t))
	}

	_, err = f.mem.MarkRevealed(ctx, f.game.ID, 1)
	require.NoError(t, err)
	full, err = f.engine.CheckAutoClose(ctx, f.game)
	require.NoError(t, err)
	assert.True(t, full)
	assert.Equal(t, domain.GameRevealed, f.status(t))
}

func TestCheckAutoClose_ConcurrentCallers(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	_, err := f.mem.InsertPicks(ctx, f.game.ID, uuid.New(), []int{1, 2, 3})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.CheckAutoClose(ctx, f.game)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, domain.GameClosed, f.status(t))
	assert.Len(t, f.notify.closed, 1)
}

func TestReservePicks_ConcurrentClaimantsNeverShareANumber(t *testing.T) {
	const (
		gameRange = 30
		users     = 25
		balance   = 10
	)
	f := newFixture(t, gameRange)

	claimants := make([]domain.Claimant, users)
	for i := range claimants {
		claimants[i] = f.user(balance)
	}

	type outcome struct {
		claimant domain.Claimant
		picks    []domain.Pick
		err      error
	}
	results := make(chan outcome, users)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i, c := range claimants {
		wg.Add(1)
		go func(i int, c domain.Claimant) {
			defer wg.Done()
			<-start
			// Overlapping windows of five numbers.
			numbers := make([]int, 5)
			for j := range numbers {
				numbers[j] = (i+j)%gameRange + 1
			}
			res, err := f.engine.ReservePicks(context.Background(), c, numbers)
			if err != nil {
				results <- outcome{claimant: c, err: err}
				return
			}
			results <- outcome{claimant: c, picks: res.Picks}
		}(i, c)
	}
	close(start)
	wg.Wait()
	close(results)

	claimed := make(map[int]uuid.UUID)
	reservedBy := make(map[uuid.UUID]int)
	for o := range results {
		if o.err != nil {
			allowed := domain.IsKind(o.err, domain.CodeAllNumbersClaimed) || domain.IsKind(o.err, domain.CodeNoActiveGame)
			assert.True(t, allowed, "unexpected error: %v", o.err)
			continue
		}
		for _, p := range o.picks {
			prev, dup := claimed[p.Number]
			require.False(t, dup, "number %d reserved by %s and %s", p.Number, prev, o.claimant.UserID)
			claimed[p.Number] = o.claimant.UserID
		}
		reservedBy[o.claimant.UserID] += len(o.picks)
	}

	stored, err := f.mem.ListPicks(context.Background(), f.game.ID)
	require.NoError(t, err)
	require.Len(t, stored, len(claimed))
	for _, p := range stored {
		assert.Equal(t, claimed[p.Number], p.UserID, fmt.Sprintf("number %d", p.Number))
	}

	for _, c := range claimants {
		bal := f.balance(t, c)
		assert.GreaterOrEqual(t, bal, int64(0))
		assert.Equal(t, int64(balance-reservedBy[c.UserID]), bal)
	}
}

func TestReservePicks_SameUserConcurrentNeverOverdraws(t *testing.T) {
	f := newFixture(t, 100)
	alice := f.user(3)

	var wg sync.WaitGroup
	var mu sync.Mutex
	charged := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.engine.ReservePicks(context.Background(), alice, []int{i*2 + 1})
			if err == nil {
				mu.Lock()
				charged += res.CostCharged
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	bal := f.balance(t, alice)
	assert.GreaterOrEqual(t, bal, int64(0))
	assert.Equal(t, int64(3-charged), bal)

	picks, err := f.mem.ListPicks(context.Background(), f.game.ID)
	require.NoError(t, err)
	assert.Len(t, picks, charged)
}
