package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/luckygrid/platform/internal/domain"
	"github.com/luckygrid/platform/internal/infra"
	"github.com/luckygrid/platform/internal/ledger"
	"github.com/luckygrid/platform/internal/repository"
)

var errSessionRace = errors.New("concurrent session start")

// Postgres is the production store. Every write runs in its own transaction
// together with the outbox rows it produces; invariants that span requests
// are enforced by constraints and guarded updates in the schema.
type Postgres struct {
	pool     *pgxpool.Pool
	profiles repository.ProfileRepository
	games    repository.GameRepository
	picks    repository.PickRepository
	sessions repository.SessionRepository
	payments repository.PaymentRepository
	outbox   repository.OutboxRepository
	ledger   *ledger.Engine
}

// NewPostgres creates a Postgres store on the pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	profiles := repository.NewProfileRepository()
	outbox := repository.NewOutboxRepository()
	return &Postgres{
		pool:     pool,
		profiles: profiles,
		games:    repository.NewGameRepository(),
		picks:    repository.NewPickRepository(),
		sessions: repository.NewSessionRepository(),
		payments: repository.NewPaymentRepository(),
		outbox:   outbox,
		ledger:   ledger.NewEngine(profiles, repository.NewTokenEntryRepository(), outbox),
	}
}

func (s *Postgres) inTx(ctx context.Context, op string, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return wrap(op+": begin", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return wrap(op, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return wrap(op+": commit", fmt.Errorf("%w: %w", domain.ErrCommitUnknown, err))
	}
	return nil
}

// Ping checks database reachability.
func (s *Postgres) Ping(ctx context.Context) error {
	return wrap("ping", infra.HealthCheck(ctx, s.pool))
}

// --- games ---

func (s *Postgres) ActiveGame(ctx context.Context) (*domain.Game, error) {
	g, err := s.games.Latest(ctx, s.pool, domain.GameActive)
	return g, wrap("active game", err)
}

func (s *Postgres) LatestGame(ctx context.Context, status domain.GameStatus) (*domain.Game, error) {
	g, err := s.games.Latest(ctx, s.pool, status)
	return g, wrap("latest game", err)
}

func (s *Postgres) LatestRevealable(ctx context.Context) (*domain.Game, error) {
	g, err := s.games.Latest(ctx, s.pool, domain.GameActive, domain.GameClosed)
	return g, wrap("latest revealable game", err)
}

func (s *Postgres) GetGame(ctx context.Context, id uuid.UUID) (*domain.Game, error) {
	g, err := s.games.FindByID(ctx, s.pool, id)
	return g, wrap("get game", err)
}

func (s *Postgres) ListGames(ctx context.Context, status domain.GameStatus, limit int) ([]domain.Game, error) {
	games, err := s.games.List(ctx, s.pool, status, limit)
	return games, wrap("list games", err)
}

func (s *Postgres) CreateGame(ctx context.Context, gameRange int) (*domain.Game, error) {
	var game *domain.Game
	err := s.inTx(ctx, "create game", func(tx pgx.Tx) error {
		if err := s.games.CompleteActive(ctx, tx); err != nil {
			return err
		}
		g, err := s.games.Create(ctx, tx, gameRange)
		if err != nil {
			return err
		}
		game = g
		return s.outbox.Insert(ctx, tx, domain.NewGameCreatedEvent(g))
	})
	if err != nil {
		return nil, err
	}
	return game, nil
}

func (s *Postgres) CloseGame(ctx context.Context, gameID uuid.UUID, totalPicks int) (bool, error) {
	var changed bool
	err := s.inTx(ctx, "close game", func(tx pgx.Tx) error {
		ok, err := s.games.Close(ctx, tx, gameID)
		if err != nil || !ok {
			return err
		}
		changed = true
		return s.outbox.Insert(ctx, tx, domain.NewGameClosedEvent(gameID, totalPicks))
	})
	return changed, err
}

func (s *Postgres) MarkRevealed(ctx context.Context, gameID uuid.UUID, winningNumber int) (*domain.Game, error) {
	var game *domain.Game
	err := s.inTx(ctx, "mark revealed", func(tx pgx.Tx) error {
		g, err := s.games.MarkRevealed(ctx, tx, gameID, winningNumber)
		if err != nil || g == nil {
			return err
		}
		game = g
		return s.outbox.Insert(ctx, tx, domain.NewGameRevealedEvent(g))
	})
	if err != nil {
		return nil, err
	}
	return game, nil
}

// --- picks ---

func (s *Postgres) ClaimedNumbers(ctx context.Context, gameID uuid.UUID, numbers []int) ([]int, error) {
	claimed, err := s.picks.Claimed(ctx, s.pool, gameID, numbers)
	return claimed, wrap("claimed numbers", err)
}

// ReserveAndDebit inserts the picks and debits their cost in one
// transaction. A taken number or an overdraw rolls both back. The shared lock
// on the game row keeps it from being closed or revealed between the status
// check and the inserts.
func (s *Postgres) ReserveAndDebit(ctx context.Context, gameID, userID uuid.UUID, numbers []int, meta json.RawMessage) ([]domain.Pick, *domain.Profile, error) {
	picks := make([]domain.Pick, 0, len(numbers))
	var profile *domain.Profile
	err := s.inTx(ctx, "reserve picks", func(tx pgx.Tx) error {
		game, err := s.games.LockForShare(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if game == nil || game.Status != domain.GameActive {
			return domain.ErrNoActiveGame()
		}
		for _, n := range numbers {
			p, err := s.picks.Insert(ctx, tx, gameID, userID, n)
			if isUniqueViolation(err) {
				return &domain.NumberTakenError{Number: n}
			}
			if err != nil {
				return err
			}
			picks = append(picks, *p)
		}
		res, err := s.ledger.ExecuteDebit(ctx, tx, domain.DebitParams{
			ProfileID: userID,
			Source:    domain.SourcePickReservation,
			Amount:    int64(len(numbers)),
			Metadata:  meta,
		})
		if err != nil {
			return err
		}
		profile = res.Profile
		return s.outbox.Insert(ctx, tx, domain.NewPicksReservedEvent(gameID, userID, numbers))
	})
	if err != nil {
		return nil, nil, err
	}
	return picks, profile, nil
}

func (s *Postgres) CountPicks(ctx context.Context, gameID uuid.UUID) (int, error) {
	n, err := s.picks.Count(ctx, s.pool, gameID)
	return n, wrap("count picks", err)
}

func (s *Postgres) ListPicks(ctx context.Context, gameID uuid.UUID) ([]domain.Pick, error) {
	picks, err := s.picks.List(ctx, s.pool, gameID)
	return picks, wrap("list picks", err)
}

func (s *Postgres) PickByNumber(ctx context.Context, gameID uuid.UUID, number int) (*domain.Pick, error) {
	p, err := s.picks.FindByNumber(ctx, s.pool, gameID, number)
	return p, wrap("pick by number", err)
}

func (s *Postgres) Participants(ctx context.Context, gameID uuid.UUID) ([]domain.ParticipantPicks, error) {
	out, err := s.picks.Participants(ctx, s.pool, gameID)
	return out, wrap("participants", err)
}

// --- profiles and tokens ---

func (s *Postgres) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	p, err := s.profiles.FindByID(ctx, s.pool, userID)
	return p, wrap("get profile", err)
}

func (s *Postgres) EnsureProfile(ctx context.Context, userID uuid.UUID, email string) (*domain.Profile, error) {
	p, err := s.profiles.Ensure(ctx, s.pool, userID, email)
	return p, wrap("ensure profile", err)
}

func (s *Postgres) UpdateProfile(ctx context.Context, userID uuid.UUID, upd domain.ProfileUpdate) (*domain.Profile, error) {
	p, err := s.profiles.Update(ctx, s.pool, userID, upd)
	return p, wrap("update profile", err)
}

func (s *Postgres) TopWinners(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	out, err := s.profiles.TopWinners(ctx, s.pool, limit)
	return out, wrap("top winners", err)
}

func (s *Postgres) IncrementWins(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	p, err := s.profiles.IncrementWins(ctx, s.pool, userID)
	return p, wrap("increment wins", err)
}

func (s *Postgres) CreditTokens(ctx context.Context, params domain.CreditParams) (*domain.CommandResult, error) {
	var result *domain.CommandResult
	err := s.inTx(ctx, "credit tokens", func(tx pgx.Tx) error {
		res, err := s.ledger.ExecuteCredit(ctx, tx, params)
		result = res
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// --- card-pull sessions ---

func (s *Postgres) ActiveSession(ctx context.Context, userID uuid.UUID) (*domain.GameSession, error) {
	sess, err := s.sessions.FindActive(ctx, s.pool, userID)
	return sess, wrap("active session", err)
}

func (s *Postgres) GetSession(ctx context.Context, id uuid.UUID) (*domain.GameSession, error) {
	sess, err := s.sessions.FindByID(ctx, s.pool, id)
	return sess, wrap("get session", err)
}

// StartSession debits the entry token and inserts the session in one
// transaction. Losing a race to a concurrent start trips the partial unique
// index and rolls the debit back.
func (s *Postgres) StartSession(ctx context.Context, userID uuid.UUID, attempts int) (*domain.GameSession, error) {
	var session *domain.GameSession
	err := s.inTx(ctx, "start session", func(tx pgx.Tx) error {
		existing, err := s.sessions.FindActive(ctx, tx, userID)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrSessionAlreadyActive(existing.ID.String())
		}
		if _, err := s.ledger.ExecuteDebit(ctx, tx, domain.DebitParams{
			ProfileID: userID,
			Source:    domain.SourceSessionStart,
			Amount:    1,
		}); err != nil {
			return err
		}
		created, err := s.sessions.Create(ctx, tx, userID, attempts)
		if isUniqueViolation(err) {
			return errSessionRace
		}
		if err != nil {
			return err
		}
		session = created
		return s.outbox.Insert(ctx, tx, domain.NewSessionStartedEvent(created))
	})
	if errors.Is(err, errSessionRace) {
		existing, ferr := s.sessions.FindActive(ctx, s.pool, userID)
		if ferr != nil || existing == nil {
			return nil, domain.ErrSessionAlreadyActive("")
		}
		return nil, domain.ErrSessionAlreadyActive(existing.ID.String())
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (s *Postgres) ApplyPull(ctx context.Context, pull domain.SessionPull) (*domain.GameSession, error) {
	var session *domain.GameSession
	err := s.inTx(ctx, "apply pull", func(tx pgx.Tx) error {
		updated, err := s.sessions.ApplyPull(ctx, tx, pull)
		if err != nil || updated == nil {
			return err
		}
		if pull.HasWonPrize {
			if _, err := s.profiles.IncrementWins(ctx, tx, pull.UserID); err != nil {
				return fmt.Errorf("increment wins: %w", err)
			}
		}
		session = updated
		return s.outbox.Insert(ctx, tx, domain.NewSessionPulledEvent(pull))
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (s *Postgres) FastestWins(ctx context.Context, category domain.Category, limit int) ([]domain.FastestWin, error) {
	out, err := s.sessions.FastestWins(ctx, s.pool, category, limit)
	return out, wrap("fastest wins", err)
}

// --- payments and admin ---

// RecordPayment stores a settled payment and credits its tokens in one
// transaction. A payment seen before returns an idempotent result.
func (s *Postgres) RecordPayment(ctx context.Context, p *domain.Payment) (*domain.CommandResult, error) {
	var result *domain.CommandResult
	err := s.inTx(ctx, "record payment", func(tx pgx.Tx) error {
		created, err := s.payments.Create(ctx, tx, p)
		if err != nil {
			return err
		}
		if !created {
			profile, err := s.profiles.FindByID(ctx, tx, p.ProfileID)
			if err != nil {
				return err
			}
			result = &domain.CommandResult{Profile: profile, Idempotent: true}
			return nil
		}
		meta, _ := json.Marshal(map[string]any{"provider": p.Provider, "payment_id": p.ID.String()})
		result, err = s.ledger.ExecuteCredit(ctx, tx, domain.CreditParams{
			ProfileID:   p.ProfileID,
			Source:      domain.SourcePayment,
			Amount:      p.Tokens,
			ExternalRef: p.Reference,
			Metadata:    meta,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Postgres) ListPayments(ctx context.Context, limit, offset int) ([]domain.PaymentView, error) {
	out, err := s.payments.List(ctx, s.pool, limit, offset)
	return out, wrap("list payments", err)
}

func (s *Postgres) ListProfiles(ctx context.Context, limit, offset int) ([]domain.Profile, error) {
	out, err := s.profiles.List(ctx, s.pool, limit, offset)
	return out, wrap("list profiles", err)
}

func (s *Postgres) Stats(ctx context.Context) (*domain.AdminStats, error) {
	var stats domain.AdminStats
	var err error
	if stats.TotalRevenue, err = s.payments.Revenue(ctx, s.pool); err != nil {
		return nil, wrap("stats", err)
	}
	if stats.TotalUsers, stats.TokensInCirculation, err = s.profiles.Totals(ctx, s.pool); err != nil {
		return nil, wrap("stats", err)
	}
	if stats.TotalPicks, err = s.picks.CountAll(ctx, s.pool); err != nil {
		return nil, wrap("stats", err)
	}
	if stats.GamesByStatus, err = s.games.CountByStatus(ctx, s.pool); err != nil {
		return nil, wrap("stats", err)
	}
	stats.ActiveGames = stats.GamesByStatus[domain.GameActive]
	return &stats, nil
}
