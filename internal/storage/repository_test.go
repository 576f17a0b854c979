package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSnapshots(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	t.Run("absent state loads as nil", func(t *testing.T) {
		data, err := repo.LoadState(ctx)
		if err != nil {
			t.Fatalf("LoadState() error = %v", err)
		}
		if data != nil {
			t.Errorf("LoadState() = %q, want nil before first save", data)
		}
	})

	t.Run("state round trip with upsert", func(t *testing.T) {
		if err := repo.SaveState(ctx, []byte(`{"v":1}`)); err != nil {
			t.Fatalf("SaveState() error = %v", err)
		}
		if err := repo.SaveState(ctx, []byte(`{"v":2}`)); err != nil {
			t.Fatalf("SaveState() error = %v", err)
		}

		data, err := repo.LoadState(ctx)
		if err != nil {
			t.Fatalf("LoadState() error = %v", err)
		}
		if string(data) != `{"v":2}` {
			t.Errorf("LoadState() = %q, want latest save", data)
		}
	})

	t.Run("settings are stored under their own key", func(t *testing.T) {
		if err := repo.SaveSettings(ctx, []byte(`{"reminderActive":true}`)); err != nil {
			t.Fatalf("SaveSettings() error = %v", err)
		}

		settings, err := repo.LoadSettings(ctx)
		if err != nil {
			t.Fatalf("LoadSettings() error = %v", err)
		}
		if string(settings) != `{"reminderActive":true}` {
			t.Errorf("LoadSettings() = %q", settings)
		}

		state, err := repo.LoadState(ctx)
		if err != nil {
			t.Fatalf("LoadState() error = %v", err)
		}
		if string(state) != `{"v":2}` {
			t.Errorf("LoadState() = %q, settings save must not clobber state", state)
		}
	})
}

func TestMirrorQueue(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	for _, name := range []string{"Kas", "Bank", "Kas"} {
		if err := repo.EnqueueMirror(ctx, name, 1); err != nil {
			t.Fatalf("EnqueueMirror(%s) error = %v", name, err)
		}
	}

	t.Run("pending returns oldest first with limit", func(t *testing.T) {
		pending, err := repo.PendingMirrors(ctx, 2)
		if err != nil {
			t.Fatalf("PendingMirrors() error = %v", err)
		}
		if len(pending) != 2 {
			t.Fatalf("got %d pending, want limit 2", len(pending))
		}
		if pending[0].AccountName != "Kas" || pending[1].AccountName != "Bank" {
			t.Errorf("pending = %s, %s, want Kas then Bank", pending[0].AccountName, pending[1].AccountName)
		}
		if pending[0].ID >= pending[1].ID {
			t.Errorf("IDs not ascending: %d then %d", pending[0].ID, pending[1].ID)
		}
	})

	t.Run("mirrored entries leave the queue", func(t *testing.T) {
		pending, err := repo.PendingMirrors(ctx, 10)
		if err != nil {
			t.Fatalf("PendingMirrors() error = %v", err)
		}
		if err := repo.MarkMirrored(ctx, pending[0].ID); err != nil {
			t.Fatalf("MarkMirrored() error = %v", err)
		}

		remaining, err := repo.PendingMirrors(ctx, 10)
		if err != nil {
			t.Fatalf("PendingMirrors() error = %v", err)
		}
		if len(remaining) != len(pending)-1 {
			t.Errorf("got %d pending after MarkMirrored, want %d", len(remaining), len(pending)-1)
		}
	})

	t.Run("errored entries stop being retried", func(t *testing.T) {
		pending, err := repo.PendingMirrors(ctx, 10)
		if err != nil {
			t.Fatalf("PendingMirrors() error = %v", err)
		}
		if err := repo.MarkMirrorError(ctx, pending[0].ID); err != nil {
			t.Fatalf("MarkMirrorError() error = %v", err)
		}

		remaining, err := repo.PendingMirrors(ctx, 10)
		if err != nil {
			t.Fatalf("PendingMirrors() error = %v", err)
		}
		for _, p := range remaining {
			if p.ID == pending[0].ID {
				t.Errorf("errored entry %d still pending", p.ID)
			}
		}
	})
}
