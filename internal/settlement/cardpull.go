package settlement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/luckygrid/platform/internal/domain"
	"github.com/luckygrid/platform/internal/draw"
	"github.com/luckygrid/platform/internal/infra"
	"github.com/luckygrid/platform/internal/metrics"
)

const (
	lossOutcome    = "Loss"
	noPrizeName    = "No Prize"
	anonymousName  = "Anonymous Player"
	leaderboardTop = 10
)

// LeaderboardRow is one ranked fastest top-category win.
type LeaderboardRow struct {
	Rank       int    `json:"rank"`
	Name       string `json:"name"`
	Prize      string `json:"prize"`
	TimeTaken  string `json:"timeTaken"`
	DurationMs int64  `json:"durationMs"`
}

// CardPull runs the card-pull mini-game: a session costs one token and grants
// a fixed number of weighted draws, ending on the first prize or when the
// attempts run out.
type CardPull struct {
	store  SessionStore
	config domain.PrizeConfig
	src    draw.Source
	now    func() time.Time
	retry  infra.RetryPolicy
	logger *slog.Logger
}

// CardPullOption configures a CardPull.
type CardPullOption func(*CardPull)

// WithSource sets the randomness used for draws.
func WithSource(src draw.Source) CardPullOption {
	return func(c *CardPull) { c.src = src }
}

// WithClock sets the clock used for session durations.
func WithClock(now func() time.Time) CardPullOption {
	return func(c *CardPull) { c.now = now }
}

// WithPullRetry sets the retry policy for store reads.
func WithPullRetry(p infra.RetryPolicy) CardPullOption {
	return func(c *CardPull) { c.retry = p }
}

// NewCardPull creates the mini-game engine. The prize table is validated once here.
func NewCardPull(store SessionStore, config domain.PrizeConfig, logger *slog.Logger, opts ...CardPullOption) (*CardPull, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	c := &CardPull{
		store:  store,
		config: config,
		src:    draw.Default(),
		now:    func() time.Time { return time.Now().UTC() },
		retry:  infra.DefaultRetryPolicy(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// StartSession debits one token and opens a session with
// domain.InitialAttempts pulls.
func (c *CardPull) StartSession(ctx context.Context, userID uuid.UUID) (*domain.GameSession, error) {
	existing, err := infra.Retry(ctx, c.retry, func(ctx context.Context) (*domain.GameSession, error) {
		return c.store.ActiveSession(ctx, userID)
	})
	if err != nil {
		return nil, domain.StoreError("load active session", err)
	}
	if existing != nil {
		return nil, domain.ErrSessionAlreadyActive(existing.ID.String())
	}

	session, err := c.store.StartSession(ctx, userID, domain.InitialAttempts)
	if err != nil {
		return nil, domain.StoreError("start session", err)
	}
	metrics.RecordSessionStarted()
	c.logger.Info("card session started", "session_id", session.ID, "user_id", userID)
	return session, nil
}

// PullCard draws one card for the session owned by userID.
func (c *CardPull) PullCard(ctx context.Context, sessionID, userID uuid.UUID) (*domain.PullResult, error) {
	session, err := infra.Retry(ctx, c.retry, func(ctx context.Context) (*domain.GameSession, error) {
		return c.store.GetSession(ctx, sessionID)
	})
	if err != nil {
		return nil, domain.StoreError("load session", err)
	}
	if session == nil {
		return nil, domain.ErrSessionNotFound()
	}
	if session.UserID != userID {
		return nil, domain.ErrNotOwner()
	}
	if !session.IsActive || session.HasWonPrize || session.AttemptsRemaining <= 0 {
		return nil, domain.ErrSessionInactive()
	}

	outcome, prize := c.draw()

	pull := domain.SessionPull{
		SessionID:    session.ID,
		UserID:       userID,
		PrevAttempts: session.AttemptsRemaining,
		Attempts:     session.AttemptsRemaining - 1,
		IsActive:     true,
	}
	if outcome.IsWinner {
		end := c.now()
		category := outcome.Category
		pull.HasWonPrize = true
		pull.IsActive = false
		pull.RewardWonName = &prize.RewardText
		pull.RewardCategory = &category
		pull.EndTime = &end
		if category == c.config.TopCategory {
			ms := end.Sub(session.StartTime).Milliseconds()
			pull.DurationMs = &ms
			outcome.DurationMs = &ms
		}
	}
	if pull.Attempts <= 0 {
		pull.IsActive = false
	}

	// Not retried: the conditional write is keyed on the attempts we read.
	updated, err := c.store.ApplyPull(ctx, pull)
	if err != nil {
		return nil, domain.StoreError("apply pull", err)
	}
	if updated == nil {
		return nil, domain.ErrSessionInactive()
	}

	metrics.RecordPull(string(outcome.Category))
	c.logger.Info("card pulled",
		"session_id", session.ID,
		"user_id", userID,
		"category", outcome.Category,
		"attempts_remaining", updated.AttemptsRemaining,
		"active", updated.IsActive,
	)
	return &domain.PullResult{Result: outcome, Session: updated}, nil
}

// draw runs the category draw and, on a win, a uniform prize pick.
func (c *CardPull) draw() (domain.PullOutcome, domain.Prize) {
	category := draw.Weighted(c.config.Categories, c.src)
	if category != c.config.NoPrize {
		if prize, ok := draw.Uniform(c.config.Prizes[category], c.src); ok {
			return domain.PullOutcome{
				Outcome:   prize.RewardText,
				PrizeName: prize.Name,
				Category:  category,
				IsWinner:  true,
			}, prize
		}
	}
	return domain.PullOutcome{
		Outcome:   lossOutcome,
		PrizeName: noPrizeName,
		Category:  c.config.NoPrize,
	}, domain.Prize{}
}

// Leaderboard ranks the fastest top-category wins.
func (c *CardPull) Leaderboard(ctx context.Context) ([]LeaderboardRow, error) {
	wins, err := infra.Retry(ctx, c.retry, func(ctx context.Context) ([]domain.FastestWin, error) {
		return c.store.FastestWins(ctx, c.config.TopCategory, leaderboardTop)
	})
	if err != nil {
		return nil, domain.StoreError("load leaderboard", err)
	}
	rows := make([]LeaderboardRow, 0, len(wins))
	for i, w := range wins {
		name := w.Name
		if name == "" {
			name = anonymousName
		}
		rows = append(rows, LeaderboardRow{
			Rank:       i + 1,
			Name:       name,
			Prize:      w.RewardName,
			TimeTaken:  fmt.Sprintf("%.2fs", float64(w.DurationMs)/1000),
			DurationMs: w.DurationMs,
		})
	}
	return rows, nil
}
