// Package store holds the whole application state as an immutable snapshot
// mutated only through pure transition functions. Every transition persists
// the full snapshot; consumers never see partial updates.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"pembukuan/internal/core"
)

// Snapshot is the complete persisted state: the account list plus the name
// of the active account. CurrentAccount is either empty or the name of an
// existing account.
type Snapshot struct {
	Accounts       []core.Account `json:"accounts"`
	CurrentAccount string         `json:"currentAccountName"`
}

// Settings are the user preferences persisted separately from the ledger
// state.
type Settings struct {
	ReminderIntervalMinutes int  `json:"reminderIntervalMinutes"`
	ReminderActive          bool `json:"reminderActive"`
}

// DefaultSettings returns the out-of-the-box reminder configuration.
func DefaultSettings() Settings {
	return Settings{ReminderIntervalMinutes: 30}
}

var (
	ErrUnknownAccount   = errors.New("unknown account")
	ErrDuplicateAccount = errors.New("account name already exists")
)

// SetAccounts replaces the full account list, recomputing every balance.
// If the current account no longer exists, it defaults to the first
// account's name, or empty when the list is empty.
func SetAccounts(s Snapshot, accounts []core.Account) Snapshot {
	next := Snapshot{Accounts: make([]core.Account, len(accounts))}
	for i, acc := range accounts {
		next.Accounts[i] = acc.WithBalance()
	}
	next.CurrentAccount = s.CurrentAccount
	if !hasAccount(next, next.CurrentAccount) {
		next.CurrentAccount = ""
		if len(next.Accounts) > 0 {
			next.CurrentAccount = next.Accounts[0].Name
		}
	}
	return next
}

// SelectAccount moves the active-account pointer. Unknown names are
// rejected and leave the snapshot unchanged.
func SelectAccount(s Snapshot, name string) (Snapshot, error) {
	if !hasAccount(s, name) {
		return s, ErrUnknownAccount
	}
	s.CurrentAccount = name
	return s, nil
}

// UpdateAccount replaces one account's transaction list wholesale and
// recomputes its balance. A name that matches no account is a no-op.
func UpdateAccount(s Snapshot, name string, txs []core.Transaction) Snapshot {
	next := s
	next.Accounts = make([]core.Account, len(s.Accounts))
	copy(next.Accounts, s.Accounts)
	for i, acc := range next.Accounts {
		if acc.Name == name {
			acc.Transactions = txs
			next.Accounts[i] = acc.WithBalance()
			break
		}
	}
	return next
}

// AddAccount appends a new account and makes it current. A duplicate name
// is rejected and leaves the snapshot unchanged.
func AddAccount(s Snapshot, acc core.Account) (Snapshot, error) {
	if hasAccount(s, acc.Name) {
		return s, ErrDuplicateAccount
	}
	next := s
	next.Accounts = make([]core.Account, len(s.Accounts), len(s.Accounts)+1)
	copy(next.Accounts, s.Accounts)
	next.Accounts = append(next.Accounts, acc.WithBalance())
	next.CurrentAccount = acc.Name
	return next, nil
}

func hasAccount(s Snapshot, name string) bool {
	if name == "" {
		return false
	}
	for _, acc := range s.Accounts {
		if acc.Name == name {
			return true
		}
	}
	return false
}

// Persister stores whole-state snapshots and settings as opaque blobs under
// fixed keys. Load returns (nil, nil) when nothing has been saved yet.
type Persister interface {
	LoadState(ctx context.Context) ([]byte, error)
	SaveState(ctx context.Context, data []byte) error
	LoadSettings(ctx context.Context) ([]byte, error)
	SaveSettings(ctx context.Context, data []byte) error
}

// Publisher emits account-changed events after mutating transitions.
// Publishing is best-effort; failures never roll back a transition.
type Publisher interface {
	PublishAccountChanged(ctx context.Context, name string, version int64) error
}

// Store serializes access to the snapshot and persists it after every
// transition.
type Store struct {
	mu        sync.Mutex
	snapshot  Snapshot
	settings  Settings
	version   int64
	persister Persister
	publisher Publisher
}

// New restores the store from the persister. A corrupt snapshot falls back
// to empty state with a warning; it never fails startup.
func New(ctx context.Context, persister Persister, publisher Publisher) *Store {
	s := &Store{
		persister: persister,
		publisher: publisher,
		settings:  DefaultSettings(),
	}
	if persister == nil {
		return s
	}
	if data, err := persister.LoadState(ctx); err != nil {
		slog.WarnContext(ctx, "State restore failed, starting empty", "error", err)
	} else if len(data) > 0 {
		var snap Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			slog.WarnContext(ctx, "Corrupt state snapshot, starting empty", "error", err)
		} else {
			s.snapshot = SetAccounts(snap, snap.Accounts)
			s.snapshot.CurrentAccount = snap.CurrentAccount
			if !hasAccount(s.snapshot, snap.CurrentAccount) && len(s.snapshot.Accounts) > 0 {
				s.snapshot.CurrentAccount = s.snapshot.Accounts[0].Name
			}
		}
	}
	if data, err := persister.LoadSettings(ctx); err != nil {
		slog.WarnContext(ctx, "Settings restore failed, using defaults", "error", err)
	} else if len(data) > 0 {
		var settings Settings
		if err := json.Unmarshal(data, &settings); err != nil {
			slog.WarnContext(ctx, "Corrupt settings snapshot, using defaults", "error", err)
		} else {
			s.settings = settings
		}
	}
	return s
}

// Snapshot returns the current state. Callers must treat the contents as
// read-only.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Settings returns the current user settings.
func (s *Store) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Version returns a counter that increments on every mutating transition.
func (s *Store) Version() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// SetAccounts replaces the account list and returns the new snapshot.
func (s *Store) SetAccounts(ctx context.Context, accounts []core.Account) Snapshot {
	s.mu.Lock()
	s.snapshot = SetAccounts(s.snapshot, accounts)
	s.version++
	snap, version := s.snapshot, s.version
	s.mu.Unlock()

	s.persist(ctx, snap)
	for _, acc := range snap.Accounts {
		s.publish(ctx, acc.Name, version)
	}
	return snap
}

// SelectAccount moves the active-account pointer.
func (s *Store) SelectAccount(ctx context.Context, name string) error {
	s.mu.Lock()
	next, err := SelectAccount(s.snapshot, name)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.snapshot = next
	s.version++
	snap := s.snapshot
	s.mu.Unlock()

	s.persist(ctx, snap)
	return nil
}

// UpdateAccount replaces one account's transactions. Unknown names return
// the unchanged snapshot along with ErrUnknownAccount.
func (s *Store) UpdateAccount(ctx context.Context, name string, txs []core.Transaction) (Snapshot, error) {
	s.mu.Lock()
	if !hasAccount(s.snapshot, name) {
		snap := s.snapshot
		s.mu.Unlock()
		return snap, ErrUnknownAccount
	}
	s.snapshot = UpdateAccount(s.snapshot, name, txs)
	s.version++
	snap, version := s.snapshot, s.version
	s.mu.Unlock()

	s.persist(ctx, snap)
	s.publish(ctx, name, version)
	return snap, nil
}

// AddAccount appends a new account and makes it current.
func (s *Store) AddAccount(ctx context.Context, acc core.Account) (Snapshot, error) {
	s.mu.Lock()
	next, err := AddAccount(s.snapshot, acc)
	if err != nil {
		snap := s.snapshot
		s.mu.Unlock()
		return snap, err
	}
	s.snapshot = next
	s.version++
	snap, version := s.snapshot, s.version
	s.mu.Unlock()

	s.persist(ctx, snap)
	s.publish(ctx, acc.Name, version)
	return snap, nil
}

// UpdateSettings replaces the user settings and persists them.
func (s *Store) UpdateSettings(ctx context.Context, settings Settings) {
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()

	if s.persister == nil {
		return
	}
	data, err := json.Marshal(settings)
	if err != nil {
		slog.ErrorContext(ctx, "Settings marshal failed", "error", err)
		return
	}
	if err := s.persister.SaveSettings(ctx, data); err != nil {
		slog.ErrorContext(ctx, "Settings persist failed", "error", err)
	}
}

func (s *Store) persist(ctx context.Context, snap Snapshot) {
	if s.persister == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		slog.ErrorContext(ctx, "State marshal failed", "error", err)
		return
	}
	if err := s.persister.SaveState(ctx, data); err != nil {
		slog.ErrorContext(ctx, "State persist failed", "error", err)
	}
}

func (s *Store) publish(ctx context.Context, name string, version int64) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishAccountChanged(ctx, name, version); err != nil {
		slog.WarnContext(ctx, "Account change publish failed", "account", name, "error", err)
	}
}
