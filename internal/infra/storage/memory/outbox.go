package memory

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	appoutbox "staybook/internal/app/outbox"
	"staybook/internal/app/uow"
)

// Outbox buffers records until Flush relays them. Records added inside a
// memory unit only become pending once that unit commits.
type Outbox struct {
	Publisher   appoutbox.Publisher
	TopicPrefix string
	Source      string
	Logger      *slog.Logger

	mu        sync.Mutex
	pending   []appoutbox.EventRecord
	delivered []appoutbox.EventRecord
}

func NewOutbox(pub appoutbox.Publisher, logger *slog.Logger) *Outbox {
	return &Outbox{Publisher: pub, Logger: logger}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	if unit, ok := uow.FromContext(ctx); ok {
		if mu, ok := unit.(*Unit); ok {
			mu.OnCommit(func() { o.enqueue(record) })
			return nil
		}
	}
	o.enqueue(record)
	return nil
}

func (o *Outbox) enqueue(record appoutbox.EventRecord) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending = append(o.pending, record)
}

// Flush publishes pending records in order. Records that fail stay pending.
func (o *Outbox) Flush(ctx context.Context) error {
	o.mu.Lock()
	batch := o.pending
	o.pending = nil
	o.mu.Unlock()

	var errs []error
	failed := make([]appoutbox.EventRecord, 0)
	for _, rec := range batch {
		if err := o.publish(ctx, rec); err != nil {
			errs = append(errs, err)
			failed = append(failed, rec)
			continue
		}
		o.mu.Lock()
		o.delivered = append(o.delivered, rec)
		o.mu.Unlock()
	}
	if len(failed) > 0 {
		o.mu.Lock()
		o.pending = append(failed, o.pending...)
		o.mu.Unlock()
		if o.Logger != nil {
			o.Logger.WarnContext(ctx, "outbox relay failed", "pending", len(failed), "error", errors.Join(errs...))
		}
	}
	return nil
}

func (o *Outbox) publish(ctx context.Context, rec appoutbox.EventRecord) error {
	if o.Publisher == nil {
		if o.Logger != nil {
			o.Logger.DebugContext(ctx, "domain event", "name", rec.Name, "aggregate", rec.Aggregate)
		}
		return nil
	}
	payload, headers, err := appoutbox.Envelope(rec, o.Source)
	if err != nil {
		return err
	}
	return o.Publisher.Publish(ctx, appoutbox.TopicFor(o.TopicPrefix, rec.Name), rec.Aggregate, payload, headers)
}

// Delivered returns the records relayed so far.
func (o *Outbox) Delivered() []appoutbox.EventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]appoutbox.EventRecord(nil), o.delivered...)
}

var _ appoutbox.Outbox = (*Outbox)(nil)
