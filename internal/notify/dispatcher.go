// Package notify delivers best-effort email: pick confirmations, reveal
// summaries, winner congratulations and the daily participant digest.
// Nothing here can fail or delay the game flow that triggered it.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/luckygrid/platform/internal/guard"
	"github.com/luckygrid/platform/internal/metrics"
)

// Sender delivers one HTML message.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Message is one queued email.
type Message struct {
	Kind    string
	To      string
	Subject string
	HTML    string
}

const breakerKey = "mail"

// Dispatcher queues messages and sends them from a fixed worker pool.
// Enqueue never blocks; a full queue drops the message.
type Dispatcher struct {
	sender      Sender
	breaker     *guard.CircuitBreaker
	queue       chan Message
	workers     int
	sendTimeout time.Duration
	logger      *slog.Logger
}

// NewDispatcher creates a dispatcher with a queue of queueSize messages.
func NewDispatcher(sender Sender, breaker *guard.CircuitBreaker, queueSize, workers int, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		sender:      sender,
		breaker:     breaker,
		queue:       make(chan Message, max(queueSize, 1)),
		workers:     max(workers, 1),
		sendTimeout: 15 * time.Second,
		logger:      logger,
	}
}

// Enqueue schedules m for delivery and reports whether it was accepted.
func (d *Dispatcher) Enqueue(m Message) bool {
	if m.To == "" {
		metrics.RecordNotification(m.Kind, "rejected")
		return false
	}
	select {
	case d.queue <- m:
		return true
	default:
		metrics.RecordNotification(m.Kind, "dropped")
		d.logger.Warn("notification queue full, message dropped", "kind", m.Kind, "to", m.To)
		return false
	}
}

// Pending returns the number of queued messages.
func (d *Dispatcher) Pending() int { return len(d.queue) }

// Run sends queued messages until ctx is cancelled. Messages still queued at
// shutdown are logged and discarded.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("notification dispatcher started", "workers", d.workers, "queue", cap(d.queue))

	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case m := <-d.queue:
					d.deliver(ctx, m)
				}
			}
		}()
	}
	wg.Wait()

	if n := len(d.queue); n > 0 {
		d.logger.Warn("notification dispatcher stopped with pending messages", "pending", n)
	}
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, m Message) {
	err := d.breaker.Do(ctx, breakerKey, func(ctx context.Context) error {
		sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
		defer cancel()
		return d.sender.Send(sendCtx, m.To, m.Subject, m.HTML)
	})
	switch {
	case err == nil:
		metrics.RecordNotification(m.Kind, "sent")
		d.logger.Debug("notification sent", "kind", m.Kind, "to", m.To)
	case errors.Is(err, guard.ErrCircuitOpen):
		metrics.RecordNotification(m.Kind, "circuit_open")
		d.logger.Warn("notification skipped, mail circuit open", "kind", m.Kind, "to", m.To)
	default:
		metrics.RecordNotification(m.Kind, "failed")
		d.logger.Error("notification failed", "kind", m.Kind, "to", m.To, "error", err)
	}
}
