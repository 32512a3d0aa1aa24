package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/luckygrid/platform/internal/domain"
	"github.com/luckygrid/platform/internal/metrics"
)

// OutboxSource reads and acknowledges rows of the event_outbox table.
type OutboxSource interface {
	Fetch(ctx context.Context, limit int) ([]domain.OutboxDraft, error)
	Ack(ctx context.Context, ids []int64) error
}

// Publisher delivers a message to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// OutboxPoller relays committed outbox events to the message bus in id order.
type OutboxPoller struct {
	source    OutboxSource
	publisher Publisher
	topic     string
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

// NewOutboxPoller creates a poller publishing every event to topic.
func NewOutboxPoller(source OutboxSource, publisher Publisher, topic string, logger *slog.Logger) *OutboxPoller {
	return &OutboxPoller{
		source:    source,
		publisher: publisher,
		topic:     topic,
		logger:    logger,
		interval:  500 * time.Millisecond,
		batchSize: 100,
	}
}

// WithInterval overrides the poll interval.
func (p *OutboxPoller) WithInterval(d time.Duration) *OutboxPoller {
	if d > 0 {
		p.interval = d
	}
	return p
}

// WithBatchSize overrides the number of rows fetched per poll.
func (p *OutboxPoller) WithBatchSize(n int) *OutboxPoller {
	if n > 0 {
		p.batchSize = n
	}
	return p
}

// Run polls until ctx is cancelled.
func (p *OutboxPoller) Run(ctx context.Context) error {
	p.logger.Info("outbox poller started", "interval", p.interval, "batch_size", p.batchSize, "topic", p.topic)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("outbox poller stopped")
			return nil
		case <-ticker.C:
			if _, err := p.PollOnce(ctx); err != nil {
				p.logger.Error("outbox poll error", "error", err)
			}
		}
	}
}

// PollOnce publishes one batch and returns how many events were acknowledged.
// Publishing stops at the first failure so a partition never sees events out
// of order; the failed event and everything after it are retried next poll.
func (p *OutboxPoller) PollOnce(ctx context.Context) (int, error) {
	events, err := p.source.Fetch(ctx, p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch outbox: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	published := make([]int64, 0, len(events))
	var pubErr error
	for _, e := range events {
		msg, err := json.Marshal(e)
		if err != nil {
			pubErr = fmt.Errorf("marshal event %s: %w", e.EventID, err)
			break
		}
		if err := p.publisher.Publish(ctx, p.topic, []byte(e.PartitionKey), msg); err != nil {
			pubErr = fmt.Errorf("publish event %s: %w", e.EventID, err)
			break
		}
		published = append(published, e.ID)
	}

	if len(published) > 0 {
		if err := p.source.Ack(ctx, published); err != nil {
			return 0, fmt.Errorf("ack outbox: %w", err)
		}
		metrics.RecordOutboxPublished(len(published))
		p.logger.Debug("outbox batch published", "count", len(published))
	}
	return len(published), pubErr
}
