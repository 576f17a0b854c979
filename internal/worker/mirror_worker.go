// Package worker drains the mirror queue, pushing changed accounts to the
// spreadsheet mirror. AMQP messages are only a nudge; the queue in SQLite is
// what guarantees delivery, and a periodic sweep recovers lost messages.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"pembukuan/internal/amqp"
	"pembukuan/internal/core"
	"pembukuan/internal/storage"
	"pembukuan/internal/store"
)

// AccountMirror pushes one account's ledger to the mirror target.
type AccountMirror interface {
	MirrorAccount(ctx context.Context, acc core.Account) error
}

type MirrorWorker struct {
	storage   *storage.SQLiteRepository
	mirror    AccountMirror
	batchSize int
}

func NewMirrorWorker(storage *storage.SQLiteRepository, mirror AccountMirror, batchSize int) *MirrorWorker {
	return &MirrorWorker{
		storage:   storage,
		mirror:    mirror,
		batchSize: batchSize,
	}
}

// HandleAccountChanged processes an account-changed message. The message
// carries no payload worth trusting; the queue rows and the stored snapshot
// are authoritative, so a nudge just triggers a sweep.
func (w *MirrorWorker) HandleAccountChanged(ctx context.Context, msg *amqp.AccountChangedMessage) error {
	slog.InfoContext(ctx, "Processing account change",
		"account", msg.Name,
		"version", msg.Version)
	return w.SweepPending(ctx)
}

// HandleExportReminder logs the reminder. Export itself happens client-side;
// the worker only records that the interval elapsed.
func (w *MirrorWorker) HandleExportReminder(ctx context.Context, msg *amqp.ExportReminderMessage) error {
	slog.InfoContext(ctx, "Export reminder due",
		"interval_minutes", msg.IntervalMinutes,
		"timestamp", msg.Timestamp)
	return nil
}

// SweepPending mirrors queued accounts that have not been pushed yet. This
// is also the backup mechanism in case AMQP messages are lost.
func (w *MirrorWorker) SweepPending(ctx context.Context) error {
	return w.sweep(ctx, w.batchSize)
}

// StartupCheck drains a larger backlog at worker startup to recover from
// downtime.
func (w *MirrorWorker) StartupCheck(ctx context.Context) error {
	pending, err := w.storage.PendingMirrors(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending mirrors for startup check: %w", err)
	}
	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending mirrors found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending mirrors on startup, processing...", "count", len(pending))
	return w.process(ctx, pending)
}

func (w *MirrorWorker) sweep(ctx context.Context, limit int) error {
	pending, err := w.storage.PendingMirrors(ctx, limit)
	if err != nil {
		return fmt.Errorf("get pending mirrors: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending mirrors", "count", len(pending))
	return w.process(ctx, pending)
}

func (w *MirrorWorker) process(ctx context.Context, pending []storage.PendingMirror) error {
	snap, err := w.loadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load state snapshot: %w", err)
	}

	accounts := make(map[string]core.Account, len(snap.Accounts))
	for _, acc := range snap.Accounts {
		accounts[acc.Name] = acc
	}

	successCount := 0
	errorCount := 0

	for _, p := range pending {
		acc, ok := accounts[p.AccountName]
		if !ok {
			// Account was removed after the change was queued; nothing left
			// to mirror.
			slog.WarnContext(ctx, "Queued account no longer exists, dropping",
				"id", p.ID, "account", p.AccountName)
			if err := w.storage.MarkMirrored(ctx, p.ID); err != nil {
				slog.ErrorContext(ctx, "Failed to mark mirrored", "id", p.ID, "error", err)
			}
			continue
		}

		if err := w.mirror.MirrorAccount(ctx, acc); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror account",
				"id", p.ID, "account", p.AccountName, "error", err)
			if markErr := w.storage.MarkMirrorError(ctx, p.ID); markErr != nil {
				slog.ErrorContext(ctx, "Failed to mark mirror error", "id", p.ID, "error", markErr)
			}
			errorCount++
			continue
		}

		if err := w.storage.MarkMirrored(ctx, p.ID); err != nil {
			// The mirror itself succeeded; only the bookkeeping failed.
			slog.ErrorContext(ctx, "Failed to mark as mirrored", "id", p.ID, "error", err)
		}
		successCount++
	}

	slog.InfoContext(ctx, "Mirror sweep completed",
		"total", len(pending),
		"mirrored", successCount,
		"errors", errorCount)
	return nil
}

func (w *MirrorWorker) loadSnapshot(ctx context.Context) (store.Snapshot, error) {
	data, err := w.storage.LoadState(ctx)
	if err != nil {
		return store.Snapshot{}, err
	}
	if len(data) == 0 {
		return store.Snapshot{}, nil
	}
	var snap store.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return store.Snapshot{}, fmt.Errorf("unmarshal state snapshot: %w", err)
	}
	return snap, nil
}
