// Package worker applies transaction changes announced by other instances
// to the local balance cache.
package worker

import (
	"context"
	"fmt"

	"saldo/internal/amqp"
	"saldo/internal/core"
	"saldo/internal/log"
)

// Invalidator is the part of the balance service the worker drives.
type Invalidator interface {
	TransactionCreated(ctx context.Context, tx core.Transaction) int
	TransactionUpdated(ctx context.Context, before, after core.Transaction) int
	TransactionDeleted(ctx context.Context, tx core.Transaction) int
	InvalidateCache(ctx context.Context, rng *core.DateRange) int
}

// InvalidationWorker maps change events onto the service's selective
// invalidation hooks.
type InvalidationWorker struct {
	target Invalidator
	logger *log.Logger
}

func NewInvalidationWorker(target Invalidator, logger *log.Logger) *InvalidationWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &InvalidationWorker{
		target: target,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// Handle processes one change message. It never reads the store: the message
// carries the ids and dates invalidation needs.
func (w *InvalidationWorker) Handle(ctx context.Context, msg *amqp.TransactionChangedMessage) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid change message: %w", err)
	}
	date, err := core.ParseISODate(msg.Date)
	if err != nil {
		return fmt.Errorf("parse date: %w", err)
	}
	tx := core.Transaction{ID: msg.TransactionID, AccountID: msg.AccountID, Date: date}

	var removed int
	switch msg.Event {
	case amqp.EventCreated:
		removed = w.target.TransactionCreated(ctx, tx)
	case amqp.EventDeleted:
		removed = w.target.TransactionDeleted(ctx, tx)
	case amqp.EventUpdated:
		before := tx
		if msg.PreviousDate != "" {
			prev, err := core.ParseISODate(msg.PreviousDate)
			if err != nil {
				return fmt.Errorf("parse previous date: %w", err)
			}
			before.Date = prev
		}
		removed = w.target.TransactionUpdated(ctx, before, tx)
	}

	w.logger.DebugContext(ctx, "Applied remote transaction change",
		"event", msg.Event,
		log.FieldTransactionID, msg.TransactionID,
		log.FieldRemoved, removed)
	return nil
}

// Resync drops the whole cache. It runs after the broker connection is
// restored, since changes sent while disconnected were missed.
func (w *InvalidationWorker) Resync(ctx context.Context) {
	n := w.target.InvalidateCache(ctx, nil)
	w.logger.InfoContext(ctx, "Cache cleared after broker reconnect", log.FieldRemoved, n)
}

// Run consumes changes from client until ctx is done.
func (w *InvalidationWorker) Run(ctx context.Context, client *amqp.Client) error {
	client.OnReconnect(func() { w.Resync(ctx) })
	return client.ConsumeTransactionChanged(ctx, w.Handle)
}
