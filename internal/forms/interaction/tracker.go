package interaction

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	id "tripsecretary/pkg/domain"
	"tripsecretary/pkg/platform/safeload"
)

// Store is the persistence seam, satisfied by interaction/store implementations.
type Store interface {
	Load(ctx context.Context, userID id.UserID, formID string) (FormState, error)
	Save(ctx context.Context, userID id.UserID, formID string, state FormState) error
	Delete(ctx context.Context, userID id.UserID, formID string) error
	DeleteAllForUser(ctx context.Context, userID id.UserID) error
}

// Tracker records which fields the traveler has actually edited, per form.
//
// Reads fail open: unreadable or corrupted persisted state degrades to "no
// fields touched" with a logged diagnostic, and InitializeFromExistingData
// re-derives touched state from the saved record on the next load. Writes
// propagate errors but never lose the in-memory state; Flush retries them.
type Tracker struct {
	store  Store
	logger *slog.Logger
	clock  func() time.Time

	mu          sync.Mutex
	cache       map[string]FormState
	initialized map[string]bool
	dirty       map[string]bool
}

// Option configures the Tracker.
type Option func(*Tracker)

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

// WithClock sets the clock function for testability.
func WithClock(clock func() time.Time) Option {
	return func(t *Tracker) {
		if clock != nil {
			t.clock = clock
		}
	}
}

func NewTracker(store Store, opts ...Option) (*Tracker, error) {
	if store == nil {
		return nil, fmt.Errorf("interaction store is required")
	}
	t := &Tracker{
		store:       store,
		clock:       time.Now,
		cache:       make(map[string]FormState),
		initialized: make(map[string]bool),
		dirty:       make(map[string]bool),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func trackKey(userID id.UserID, formID string) string {
	return userID.String() + ":" + formID
}

// stateLocked returns the cached form state, loading it fail-open on first
// access. Callers must hold t.mu.
func (t *Tracker) stateLocked(ctx context.Context, userID id.UserID, formID string) FormState {
	key := trackKey(userID, formID)
	if state, ok := t.cache[key]; ok {
		return state
	}
	state := safeload.Load(ctx, t.logger, "interaction state "+formID, FormState{},
		func(ctx context.Context) (FormState, error) {
			return t.store.Load(ctx, userID, formID)
		})
	if state == nil {
		state = FormState{}
	}
	t.cache[key] = state
	return state
}

// MarkFieldModified records a genuine user edit. Idempotent: repeated calls
// for the same field only refresh LastValue and TouchedAt. The updated form
// state is persisted as a side effect.
func (t *Tracker) MarkFieldModified(ctx context.Context, userID id.UserID, formID, field, value string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := t.stateLocked(ctx, userID, formID)
	state[field] = FieldState{
		Touched:   true,
		LastValue: value,
		TouchedAt: t.clock(),
	}
	return t.persistLocked(ctx, userID, formID, state)
}

// ClearField resets a field to untouched when it is programmatically cleared
// to empty (not a user edit).
func (t *Tracker) ClearField(ctx context.Context, userID id.UserID, formID, field string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := t.stateLocked(ctx, userID, formID)
	if _, ok := state[field]; !ok {
		return nil
	}
	delete(state, field)
	return t.persistLocked(ctx, userID, formID, state)
}

// IsFieldUserModified reports whether the field was edited by the user (or
// migrated from pre-tracking saved data).
func (t *Tracker) IsFieldUserModified(ctx context.Context, userID id.UserID, formID, field string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stateLocked(ctx, userID, formID)[field].Touched
}

// ModifiedFields returns the set of touched field names for a form.
func (t *Tracker) ModifiedFields(ctx context.Context, userID id.UserID, formID string) map[string]bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := t.stateLocked(ctx, userID, formID)
	out := make(map[string]bool, len(state))
	for name, fs := range state {
		if fs.Touched {
			out[name] = true
		}
	}
	return out
}

// InitializeFromExistingData is the migration path for records saved before
// interaction tracking existed: every non-empty field of the loaded record is
// marked touched without requiring a re-edit. Runs at most once per
// (user, form) per process; it must be called before any MarkFieldModified
// for the form so genuinely new edits are never downgraded.
func (t *Tracker) InitializeFromExistingData(ctx context.Context, userID id.UserID, formID string, existing map[string]string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := trackKey(userID, formID)
	if t.initialized[key] {
		return nil
	}
	t.initialized[key] = true

	state := t.stateLocked(ctx, userID, formID)
	changed := false
	now := t.clock()
	for field, value := range existing {
		if value == "" {
			continue
		}
		if state[field].Touched {
			continue
		}
		state[field] = FieldState{Touched: true, LastValue: value, TouchedAt: now}
		changed = true
	}
	if !changed {
		return nil
	}
	return t.persistLocked(ctx, userID, formID, state)
}

// ResetForm drops all interaction state for a form (form reset).
func (t *Tracker) ResetForm(ctx context.Context, userID id.UserID, formID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := trackKey(userID, formID)
	delete(t.cache, key)
	delete(t.initialized, key)
	delete(t.dirty, key)
	if err := t.store.Delete(ctx, userID, formID); err != nil {
		return fmt.Errorf("reset interaction state: %w", err)
	}
	return nil
}

// Flush re-persists any state whose last write failed. Called on form
// unmount, after a cancelled debounced save: cancelling a save must not drop
// tracker state.
func (t *Tracker) Flush(ctx context.Context, userID id.UserID, formID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := trackKey(userID, formID)
	if !t.dirty[key] {
		return nil
	}
	state, ok := t.cache[key]
	if !ok {
		delete(t.dirty, key)
		return nil
	}
	return t.persistLocked(ctx, userID, formID, state)
}

// DeleteAllForUser removes every form's interaction state for the user.
func (t *Tracker) DeleteAllForUser(ctx context.Context, userID id.UserID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	prefix := userID.String() + ":"
	for key := range t.cache {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(t.cache, key)
			delete(t.initialized, key)
			delete(t.dirty, key)
		}
	}
	return t.store.DeleteAllForUser(ctx, userID)
}

func (t *Tracker) persistLocked(ctx context.Context, userID id.UserID, formID string, state FormState) error {
	key := trackKey(userID, formID)
	if err := t.store.Save(ctx, userID, formID, state); err != nil {
		t.dirty[key] = true
		return fmt.Errorf("persist interaction state: %w", err)
	}
	delete(t.dirty, key)
	return nil
}
