package worker

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"pembukuan/internal/amqp"
	"pembukuan/internal/core"
	"pembukuan/internal/storage"
	"pembukuan/internal/store"
)

type fakeMirror struct {
	mirrored []string
	failFor  string
}

func (f *fakeMirror) MirrorAccount(ctx context.Context, acc core.Account) error {
	if acc.Name == f.failFor {
		return errors.New("mirror unavailable")
	}
	f.mirrored = append(f.mirrored, acc.Name)
	return nil
}

func newTestRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func saveSnapshot(t *testing.T, repo *storage.SQLiteRepository, names ...string) {
	t.Helper()
	snap := store.Snapshot{}
	for _, name := range names {
		snap.Accounts = append(snap.Accounts, core.NormalizeAccount(name, []core.RawTransaction{
			{Date: "2024-01-10", Description: "Saldo awal", Income: 1000.0},
		}))
	}
	if len(names) > 0 {
		snap.CurrentAccount = names[0]
	}
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	if err := repo.SaveState(context.Background(), data); err != nil {
		t.Fatalf("SaveState() error = %v", err)
	}
}

func TestMirrorWorker_SweepPending(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	saveSnapshot(t, repo, "Kas", "Bank")

	if err := repo.EnqueueMirror(ctx, "Kas", 1); err != nil {
		t.Fatalf("EnqueueMirror() error = %v", err)
	}
	if err := repo.EnqueueMirror(ctx, "Bank", 1); err != nil {
		t.Fatalf("EnqueueMirror() error = %v", err)
	}

	mirror := &fakeMirror{}
	w := NewMirrorWorker(repo, mirror, 10)

	if err := w.SweepPending(ctx); err != nil {
		t.Fatalf("SweepPending() error = %v", err)
	}
	if len(mirror.mirrored) != 2 {
		t.Fatalf("mirrored %d accounts, want 2", len(mirror.mirrored))
	}

	// Everything is marked; a second sweep must not mirror again.
	if err := w.SweepPending(ctx); err != nil {
		t.Fatalf("second SweepPending() error = %v", err)
	}
	if len(mirror.mirrored) != 2 {
		t.Errorf("mirrored %d accounts after second sweep, want still 2", len(mirror.mirrored))
	}
}

func TestMirrorWorker_SweepMarksErrors(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	saveSnapshot(t, repo, "Kas")

	if err := repo.EnqueueMirror(ctx, "Kas", 1); err != nil {
		t.Fatalf("EnqueueMirror() error = %v", err)
	}

	mirror := &fakeMirror{failFor: "Kas"}
	w := NewMirrorWorker(repo, mirror, 10)

	if err := w.SweepPending(ctx); err != nil {
		t.Fatalf("SweepPending() error = %v", err)
	}

	// The failed row is flagged and excluded from the next sweep.
	pending, err := repo.PendingMirrors(ctx, 10)
	if err != nil {
		t.Fatalf("PendingMirrors() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("got %d pending rows after failure, want 0 (flagged as error)", len(pending))
	}
}

func TestMirrorWorker_DropsRemovedAccounts(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	saveSnapshot(t, repo, "Kas")

	if err := repo.EnqueueMirror(ctx, "Giro", 1); err != nil {
		t.Fatalf("EnqueueMirror() error = %v", err)
	}

	mirror := &fakeMirror{}
	w := NewMirrorWorker(repo, mirror, 10)

	if err := w.SweepPending(ctx); err != nil {
		t.Fatalf("SweepPending() error = %v", err)
	}
	if len(mirror.mirrored) != 0 {
		t.Errorf("mirrored %d accounts, want 0 for a removed account", len(mirror.mirrored))
	}

	pending, err := repo.PendingMirrors(ctx, 10)
	if err != nil {
		t.Fatalf("PendingMirrors() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("got %d pending rows, want 0 after dropping removed account", len(pending))
	}
}

func TestMirrorWorker_HandleAccountChanged(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	saveSnapshot(t, repo, "Kas")

	if err := repo.EnqueueMirror(ctx, "Kas", 3); err != nil {
		t.Fatalf("EnqueueMirror() error = %v", err)
	}

	mirror := &fakeMirror{}
	w := NewMirrorWorker(repo, mirror, 10)

	msg := amqp.NewAccountChangedMessage("Kas", 3)
	if err := w.HandleAccountChanged(ctx, msg); err != nil {
		t.Fatalf("HandleAccountChanged() error = %v", err)
	}
	if len(mirror.mirrored) != 1 || mirror.mirrored[0] != "Kas" {
		t.Errorf("mirrored = %v, want [Kas]", mirror.mirrored)
	}
}

func TestEventPublisher_EnqueuesWithoutAMQP(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	p := NewEventPublisher(repo, nil)
	if err := p.PublishAccountChanged(ctx, "Kas", 1); err != nil {
		t.Fatalf("PublishAccountChanged() error = %v", err)
	}

	pending, err := repo.PendingMirrors(ctx, 10)
	if err != nil {
		t.Fatalf("PendingMirrors() error = %v", err)
	}
	if len(pending) != 1 || pending[0].AccountName != "Kas" {
		t.Fatalf("pending = %+v, want one row for Kas", pending)
	}
}
