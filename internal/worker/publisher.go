package worker

import (
	"context"
	"fmt"
	"log/slog"

	"pembukuan/internal/amqp"
	"pembukuan/internal/storage"
)

// EventPublisher records account changes durably in the mirror queue before
// nudging the worker over AMQP. A lost AMQP message is recovered by the
// periodic sweep; a failed enqueue is the only hard error.
type EventPublisher struct {
	storage *storage.SQLiteRepository
	events  *amqp.Client
}

func NewEventPublisher(storage *storage.SQLiteRepository, events *amqp.Client) *EventPublisher {
	return &EventPublisher{storage: storage, events: events}
}

func (p *EventPublisher) PublishAccountChanged(ctx context.Context, name string, version int64) error {
	if p.storage != nil {
		if err := p.storage.EnqueueMirror(ctx, name, version); err != nil {
			return fmt.Errorf("enqueue mirror: %w", err)
		}
	}
	if p.events == nil {
		return nil
	}
	if err := p.events.PublishAccountChanged(ctx, name, version); err != nil {
		// The queue row survives; the sweep will pick it up.
		slog.WarnContext(ctx, "AMQP nudge failed, relying on sweep",
			"account", name, "version", version, "error", err)
	}
	return nil
}
