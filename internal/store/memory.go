// Package store provides the persistence adapters behind the grid, settlement
// and profile services: a Postgres store for production and an in-memory
// store with the same semantics for tests and local runs.
package store

import (
	"context"
	"encoding/json"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/luckygrid/platform/internal/domain"
)

type pickKey struct {
	game   uuid.UUID
	number int
}

// Memory is an in-memory store. All methods are safe for concurrent use and
// apply each write atomically under a single lock.
type Memory struct {
	mu       sync.RWMutex
	games    map[uuid.UUID]*domain.Game
	picks    map[pickKey]*domain.Pick
	profiles map[uuid.UUID]*domain.Profile
	sessions map[uuid.UUID]*domain.GameSession
	entries  []domain.TokenEntry
	events   []domain.OutboxDraft
	credits  map[domain.CreditKey]uuid.UUID
	payments []domain.Payment
	seq      time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		games:    make(map[uuid.UUID]*domain.Game),
		picks:    make(map[pickKey]*domain.Pick),
		profiles: make(map[uuid.UUID]*domain.Profile),
		sessions: make(map[uuid.UUID]*domain.GameSession),
		credits:  make(map[domain.CreditKey]uuid.UUID),
		seq:      time.Now().UTC(),
	}
}

// now returns strictly increasing timestamps so "most recent" is well defined.
func (m *Memory) now() time.Time {
	m.seq = m.seq.Add(time.Microsecond)
	if wall := time.Now().UTC(); wall.After(m.seq) {
		m.seq = wall
	}
	return m.seq
}

// PutProfile inserts or replaces a profile.
func (m *Memory) PutProfile(p domain.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = m.now()
	}
	p.UpdatedAt = p.CreatedAt
	m.profiles[p.ID] = &p
}

// PutGame inserts or replaces a game.
func (m *Memory) PutGame(g domain.Game) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = m.now()
	}
	m.games[g.ID] = &g
}

// Entries returns a copy of the token ledger.
func (m *Memory) Entries() []domain.TokenEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.entries)
}

// Events returns a copy of the recorded outbox events.
func (m *Memory) Events() []domain.OutboxDraft {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.events)
}

// --- games ---

func (m *Memory) ActiveGame(_ context.Context) (*domain.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latestLocked(func(g *domain.Game) bool { return g.Status == domain.GameActive }), nil
}

func (m *Memory) LatestGame(_ context.Context, status domain.GameStatus) (*domain.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latestLocked(func(g *domain.Game) bool { return g.Status == status }), nil
}

func (m *Memory) LatestRevealable(_ context.Context) (*domain.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latestLocked(func(g *domain.Game) bool { return g.Status.Revealable() }), nil
}

func (m *Memory) GetGame(_ context.Context, id uuid.UUID) (*domain.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[id]
	if !ok {
		return nil, nil
	}
	return copyGame(g), nil
}

func (m *Memory) ListGames(_ context.Context, status domain.GameStatus, limit int) ([]domain.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Game
	for _, g := range m.games {
		if g.Status == status {
			out = append(out, *copyGame(g))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) CreateGame(_ context.Context, gameRange int) (*domain.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.games {
		if g.Status == domain.GameActive {
			g.Status = domain.GameCompleted
		}
	}
	g := &domain.Game{ID: uuid.New(), Range: gameRange, Status: domain.GameActive, CreatedAt: m.now()}
	m.games[g.ID] = g
	m.events = append(m.events, domain.NewGameCreatedEvent(g))
	return copyGame(g), nil
}

func (m *Memory) CloseGame(_ context.Context, gameID uuid.UUID, totalPicks int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[gameID]
	if !ok || g.Status != domain.GameActive {
		return false, nil
	}
	g.Status = domain.GameClosed
	m.events = append(m.events, domain.NewGameClosedEvent(gameID, totalPicks))
	return true, nil
}

func (m *Memory) MarkRevealed(_ context.Context, gameID uuid.UUID, winningNumber int) (*domain.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[gameID]
	if !ok || !g.Status.Revealable() {
		return nil, nil
	}
	n := winningNumber
	at := m.now()
	g.Status = domain.GameRevealed
	g.WinningNumber = &n
	g.RevealedAt = &at
	m.events = append(m.events, domain.NewGameRevealedEvent(g))
	return copyGame(g), nil
}

func (m *Memory) latestLocked(match func(*domain.Game) bool) *domain.Game {
	var best *domain.Game
	for _, g := range m.games {
		if match(g) && (best == nil || g.CreatedAt.After(best.CreatedAt)) {
			best = g
		}
	}
	if best == nil {
		return nil
	}
	return copyGame(best)
}

// --- picks ---

func (m *Memory) ClaimedNumbers(_ context.Context, gameID uuid.UUID, numbers []int) ([]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []int
	for _, n := range numbers {
		if _, ok := m.picks[pickKey{gameID, n}]; ok {
			out = append(out, n)
		}
	}
	return out, nil
}

// InsertPicks records picks without charging for them. Fixtures use it to
// seed a grid.
func (m *Memory) InsertPicks(_ context.Context, gameID, userID uuid.UUID, numbers []int) ([]domain.Pick, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkPicksLocked(gameID, numbers); err != nil {
		return nil, err
	}
	return m.insertPicksLocked(gameID, userID, numbers), nil
}

// ReserveAndDebit checks, charges and inserts under one lock.
func (m *Memory) ReserveAndDebit(_ context.Context, gameID, userID uuid.UUID, numbers []int, meta json.RawMessage) ([]domain.Pick, *domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkPicksLocked(gameID, numbers); err != nil {
		return nil, nil, err
	}
	p, err := m.debitLocked(userID, int64(len(numbers)), domain.SourcePickReservation, meta)
	if err != nil {
		return nil, nil, err
	}
	cp := *p
	return m.insertPicksLocked(gameID, userID, numbers), &cp, nil
}

func (m *Memory) checkPicksLocked(gameID uuid.UUID, numbers []int) error {
	g, ok := m.games[gameID]
	if !ok || g.Status != domain.GameActive {
		return domain.ErrNoActiveGame()
	}
	for _, n := range numbers {
		if _, taken := m.picks[pickKey{gameID, n}]; taken {
			return &domain.NumberTakenError{Number: n}
		}
	}
	return nil
}

func (m *Memory) insertPicksLocked(gameID, userID uuid.UUID, numbers []int) []domain.Pick {
	at := m.now()
	out := make([]domain.Pick, 0, len(numbers))
	for _, n := range numbers {
		p := &domain.Pick{ID: uuid.New(), GameID: gameID, UserID: userID, Number: n, PickedAt: at}
		m.picks[pickKey{gameID, n}] = p
		out = append(out, *p)
	}
	m.events = append(m.events, domain.NewPicksReservedEvent(gameID, userID, numbers))
	return out
}

func (m *Memory) CountPicks(_ context.Context, gameID uuid.UUID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for k := range m.picks {
		if k.game == gameID {
			count++
		}
	}
	return count, nil
}

func (m *Memory) ListPicks(_ context.Context, gameID uuid.UUID) ([]domain.Pick, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.picksLocked(gameID), nil
}

func (m *Memory) PickByNumber(_ context.Context, gameID uuid.UUID, number int) (*domain.Pick, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.picks[pickKey{gameID, number}]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *Memory) Participants(_ context.Context, gameID uuid.UUID) ([]domain.ParticipantPicks, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byUser := make(map[uuid.UUID]*domain.ParticipantPicks)
	var order []uuid.UUID
	for _, p := range m.picksLocked(gameID) {
		pp, ok := byUser[p.UserID]
		if !ok {
			pp = &domain.ParticipantPicks{UserID: p.UserID}
			if prof, ok := m.profiles[p.UserID]; ok {
				pp.Email = prof.Email
				pp.Name = prof.Name
			}
			byUser[p.UserID] = pp
			order = append(order, p.UserID)
		}
		pp.Numbers = append(pp.Numbers, p.Number)
	}
	out := make([]domain.ParticipantPicks, 0, len(order))
	for _, id := range order {
		out = append(out, *byUser[id])
	}
	return out, nil
}

func (m *Memory) picksLocked(gameID uuid.UUID) []domain.Pick {
	out := []domain.Pick{}
	for k, p := range m.picks {
		if k.game == gameID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// --- profiles and tokens ---

func (m *Memory) GetProfile(_ context.Context, userID uuid.UUID) (*domain.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *Memory) EnsureProfile(_ context.Context, userID uuid.UUID, email string) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		at := m.now()
		p = &domain.Profile{ID: userID, Email: email, CreatedAt: at, UpdatedAt: at}
		m.profiles[userID] = p
	} else if email != "" && p.Email != email {
		p.Email = email
		p.UpdatedAt = m.now()
	}
	cp := *p
	return &cp, nil
}

func (m *Memory) UpdateProfile(_ context.Context, userID uuid.UUID, upd domain.ProfileUpdate) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, nil
	}
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.Phone != nil {
		p.Phone = *upd.Phone
	}
	p.UpdatedAt = m.now()
	cp := *p
	return &cp, nil
}

func (m *Memory) TopWinners(_ context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.LeaderboardEntry, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, domain.LeaderboardEntry{UserID: p.ID, Name: p.DisplayName(), TotalWins: p.TotalWins})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalWins != out[j].TotalWins {
			return out[i].TotalWins > out[j].TotalWins
		}
		return out[i].UserID.String() < out[j].UserID.String()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) IncrementWins(_ context.Context, userID uuid.UUID) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, nil
	}
	p.TotalWins++
	cp := *p
	return &cp, nil
}

func (m *Memory) CreditTokens(_ context.Context, params domain.CreditParams) (*domain.CommandResult, error) {
	if err := domain.ValidatePositiveAmount(params.Amount); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[params.ProfileID]
	if !ok {
		return nil, domain.ErrProfileUnavailable()
	}
	key := domain.CreditKey{ProfileID: params.ProfileID, Source: params.Source, ExternalRef: params.ExternalRef}
	if params.ExternalRef != "" {
		if id, seen := m.credits[key]; seen {
			cp := *p
			return &domain.CommandResult{Entry: m.entryLocked(id), Profile: &cp, Idempotent: true}, nil
		}
	}

	p.TokenBalance += params.Amount
	p.UpdatedAt = m.now()
	entry := m.appendEntryLocked(p, domain.TokenCredit, params.Source, params.Amount, params.ExternalRef, params.Metadata)
	if params.ExternalRef != "" {
		m.credits[key] = entry.ID
	}
	cp := *p
	return &domain.CommandResult{Entry: entry, Profile: &cp}, nil
}

func (m *Memory) debitLocked(userID uuid.UUID, amount int64, source domain.TokenSource, meta json.RawMessage) (*domain.Profile, error) {
	if err := domain.ValidatePositiveAmount(amount); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	p, ok := m.profiles[userID]
	if !ok {
		return nil, domain.ErrProfileUnavailable()
	}
	if p.TokenBalance < amount {
		return nil, domain.ErrInsufficientTokens(p.TokenBalance, amount)
	}
	p.TokenBalance -= amount
	p.UpdatedAt = m.now()
	m.appendEntryLocked(p, domain.TokenDebit, source, amount, "", meta)
	return p, nil
}

func (m *Memory) appendEntryLocked(p *domain.Profile, typ domain.TokenEntryType, source domain.TokenSource, amount int64, ref string, meta json.RawMessage) *domain.TokenEntry {
	entry := domain.TokenEntry{
		ID:           uuid.New(),
		ProfileID:    p.ID,
		Type:         typ,
		Source:       source,
		Amount:       amount,
		BalanceAfter: p.TokenBalance,
		Metadata:     meta,
		CreatedAt:    m.now(),
	}
	if ref != "" {
		entry.ExternalRef = &ref
	}
	m.entries = append(m.entries, entry)
	m.events = append(m.events, domain.NewTokensPostedEvent(&entry))
	return &entry
}

func (m *Memory) entryLocked(id uuid.UUID) *domain.TokenEntry {
	for i := range m.entries {
		if m.entries[i].ID == id {
			e := m.entries[i]
			return &e
		}
	}
	return nil
}

// --- card-pull sessions ---

func (m *Memory) ActiveSession(_ context.Context, userID uuid.UUID) (*domain.GameSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeSessionLocked(userID), nil
}

func (m *Memory) StartSession(_ context.Context, userID uuid.UUID, attempts int) (*domain.GameSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.activeSessionLocked(userID); s != nil {
		return nil, domain.ErrSessionAlreadyActive(s.ID.String())
	}
	if _, err := m.debitLocked(userID, 1, domain.SourceSessionStart, nil); err != nil {
		return nil, err
	}
	s := &domain.GameSession{
		ID:                uuid.New(),
		UserID:            userID,
		AttemptsRemaining: attempts,
		IsActive:          true,
		StartTime:         m.now(),
	}
	m.sessions[s.ID] = s
	m.events = append(m.events, domain.NewSessionStartedEvent(s))
	cp := *s
	return &cp, nil
}

func (m *Memory) GetSession(_ context.Context, id uuid.UUID) (*domain.GameSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *Memory) ApplyPull(_ context.Context, pull domain.SessionPull) (*domain.GameSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[pull.SessionID]
	if !ok || !s.IsActive || s.AttemptsRemaining != pull.PrevAttempts || s.UserID != pull.UserID {
		return nil, nil
	}
	s.AttemptsRemaining = pull.Attempts
	s.IsActive = pull.IsActive
	s.HasWonPrize = pull.HasWonPrize
	s.RewardWonName = pull.RewardWonName
	s.RewardCategory = pull.RewardCategory
	s.EndTime = pull.EndTime
	s.DurationMs = pull.DurationMs
	if pull.HasWonPrize {
		if p, ok := m.profiles[pull.UserID]; ok {
			p.TotalWins++
		}
	}
	m.events = append(m.events, domain.NewSessionPulledEvent(pull))
	cp := *s
	return &cp, nil
}

func (m *Memory) FastestWins(_ context.Context, category domain.Category, limit int) ([]domain.FastestWin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.FastestWin
	for _, s := range m.sessions {
		if !s.HasWonPrize || s.RewardCategory == nil || *s.RewardCategory != category || s.DurationMs == nil || s.EndTime == nil {
			continue
		}
		w := domain.FastestWin{UserID: s.UserID, DurationMs: *s.DurationMs, EndTime: *s.EndTime}
		if s.RewardWonName != nil {
			w.RewardName = *s.RewardWonName
		}
		if p, ok := m.profiles[s.UserID]; ok {
			w.Name = p.Name
		}
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DurationMs < out[j].DurationMs })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) activeSessionLocked(userID uuid.UUID) *domain.GameSession {
	for _, s := range m.sessions {
		if s.UserID == userID && s.IsActive {
			cp := *s
			return &cp
		}
	}
	return nil
}

// --- payments and admin ---

func (m *Memory) RecordPayment(_ context.Context, p *domain.Payment) (*domain.CommandResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.payments {
		if existing.Provider == p.Provider && existing.Reference == p.Reference {
			var profile *domain.Profile
			if prof, ok := m.profiles[p.ProfileID]; ok {
				cp := *prof
				profile = &cp
			}
			return &domain.CommandResult{Profile: profile, Idempotent: true}, nil
		}
	}
	prof, ok := m.profiles[p.ProfileID]
	if !ok {
		return nil, domain.ErrProfileUnavailable()
	}
	if err := domain.ValidatePositiveAmount(p.Tokens); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	p.ID = uuid.New()
	p.CreatedAt = m.now()
	m.payments = append(m.payments, *p)

	prof.TokenBalance += p.Tokens
	prof.UpdatedAt = m.now()
	entry := m.appendEntryLocked(prof, domain.TokenCredit, domain.SourcePayment, p.Tokens, p.Reference, p.Metadata)
	m.credits[domain.CreditKey{ProfileID: p.ProfileID, Source: domain.SourcePayment, ExternalRef: p.Reference}] = entry.ID
	cp := *prof
	return &domain.CommandResult{Entry: entry, Profile: &cp}, nil
}

func (m *Memory) ListPayments(_ context.Context, limit, offset int) ([]domain.PaymentView, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.PaymentView, 0, len(m.payments))
	for i := len(m.payments) - 1; i >= 0; i-- {
		v := domain.PaymentView{Payment: m.payments[i], UserName: "N/A"}
		if prof, ok := m.profiles[v.ProfileID]; ok && prof.Name != "" {
			v.UserName = prof.Name
		}
		out = append(out, v)
	}
	return page(out, limit, offset), nil
}

func (m *Memory) ListProfiles(_ context.Context, limit, offset int) ([]domain.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

func (m *Memory) Stats(_ context.Context) (*domain.AdminStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := &domain.AdminStats{
		TotalUsers:    len(m.profiles),
		TotalPicks:    len(m.picks),
		GamesByStatus: make(map[domain.GameStatus]int),
	}
	for _, p := range m.profiles {
		stats.TokensInCirculation += p.TokenBalance
	}
	for _, p := range m.payments {
		if p.Status == domain.PaymentStatusCompleted {
			stats.TotalRevenue += p.AmountMinor
		}
	}
	for _, g := range m.games {
		stats.GamesByStatus[g.Status]++
	}
	stats.ActiveGames = stats.GamesByStatus[domain.GameActive]
	return stats, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

// --- health ---

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error { return nil }

func copyGame(g *domain.Game) *domain.Game {
	cp := *g
	if g.WinningNumber != nil {
		n := *g.WinningNumber
		cp.WinningNumber = &n
	}
	return &cp
}
