package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/luckygrid/platform/internal/domain"
	"github.com/luckygrid/platform/internal/repository"
)

// Outbox reads committed events for the outbox poller.
type Outbox struct {
	pool *pgxpool.Pool
	repo repository.OutboxRepository
}

// NewOutbox creates an outbox source on the pool.
func NewOutbox(pool *pgxpool.Pool) *Outbox {
	return &Outbox{pool: pool, repo: repository.NewOutboxRepository()}
}

// Fetch returns up to limit events in commit order.
func (o *Outbox) Fetch(ctx context.Context, limit int) ([]domain.OutboxDraft, error) {
	events, err := o.repo.FetchUnpublished(ctx, o.pool, limit)
	return events, wrap("fetch outbox", err)
}

// Ack removes published events.
func (o *Outbox) Ack(ctx context.Context, ids []int64) error {
	return wrap("ack outbox", o.repo.MarkPublished(ctx, o.pool, ids))
}
