package outbox

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	appoutbox "staybook/internal/app/outbox"
)

// Queue is the claim side of the durable outbox.
type Queue interface {
	Claim(ctx context.Context, workerID string, staleAfter time.Duration) (*EventDocument, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error
}

type Worker struct {
	Store       Queue
	Producer    appoutbox.Publisher
	Interval    time.Duration
	StaleAfter  time.Duration
	TopicPrefix string
	Source      string
	ID          string
	Backoff     []time.Duration
	Logger      *slog.Logger
}

var ErrWorkerNotConfigured = errors.New("outbox: worker missing dependencies")

// Run relays records until ctx is done. Store errors are logged and retried
// on the next tick.
func (w *Worker) Run(ctx context.Context) error {
	if w.Store == nil || w.Producer == nil {
		return ErrWorkerNotConfigured
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for {
				sent, err := w.ProcessOnce(ctx)
				if err != nil {
					w.logger().WarnContext(ctx, "outbox relay failed", "worker", w.ID, "error", err)
				}
				if !sent || err != nil {
					break
				}
			}
		}
	}
}

// ProcessOnce relays at most one record and reports whether one was claimed.
func (w *Worker) ProcessOnce(ctx context.Context) (bool, error) {
	doc, err := w.Store.Claim(ctx, w.ID, w.staleAfter())
	if err != nil || doc == nil {
		return false, err
	}
	rec := doc.Record()
	payload, headers, err := appoutbox.Envelope(rec, w.Source)
	if err != nil {
		return true, w.Store.MarkFailed(ctx, doc.ID, w.nextRetry(doc.Attempts), err.Error())
	}
	topic := appoutbox.TopicFor(w.TopicPrefix, rec.Name)
	if err := w.Producer.Publish(ctx, topic, rec.Aggregate, payload, headers); err != nil {
		w.logger().WarnContext(ctx, "outbox publish failed", "event", rec.Name, "attempts", doc.Attempts+1, "error", err)
		return true, w.Store.MarkFailed(ctx, doc.ID, w.nextRetry(doc.Attempts), err.Error())
	}
	return true, w.Store.MarkSent(ctx, doc.ID)
}

func (w *Worker) interval() time.Duration {
	if w.Interval <= 0 {
		return 500 * time.Millisecond
	}
	return w.Interval
}

func (w *Worker) staleAfter() time.Duration {
	if w.StaleAfter <= 0 {
		return time.Minute
	}
	return w.StaleAfter
}

func (w *Worker) nextRetry(attempts int) time.Time {
	if attempts < len(w.Backoff) {
		return time.Now().Add(w.Backoff[attempts])
	}
	if len(w.Backoff) > 0 {
		return time.Now().Add(w.Backoff[len(w.Backoff)-1])
	}
	return time.Now().Add(5 * time.Second)
}

func (w *Worker) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}
