// Package debounce coalesces rapid field edits into one persisted write per
// form. It is the only component that owns save timers; everything else goes
// through Schedule, Flush and Cancel.
package debounce

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// SaveFunc performs the actual persisted write for one form.
type SaveFunc func(ctx context.Context) error

type pending struct {
	timer *time.Timer
	fn    SaveFunc
	// inflight counts writes currently running for this form. The entry stays
	// in the map until it drops to zero so a replacement entry can never run
	// a write concurrently with it.
	inflight int
	// writeMu serializes writes for this form: a new save arriving while one
	// is in flight waits for it to settle, so storage sees writes in issue
	// order and never two concurrent writes for the same form.
	writeMu sync.Mutex
}

// Coordinator batches rapid successive edits into a single write per form per
// idle window. Explicit saves call Flush first so a stale debounced write can
// never race after and clobber the immediate one.
type Coordinator struct {
	window  time.Duration
	logger  *slog.Logger
	flushes FlushCounter

	mu    sync.Mutex
	forms map[string]*pending
}

// FlushCounter observes how pending saves settle: "timer" (window elapsed),
// "explicit" (Flush ran a pending save) or "cancel" (dropped).
type FlushCounter interface {
	Flushed(trigger string)
}

// Option configures the Coordinator.
type Option func(*Coordinator)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

func WithFlushCounter(fc FlushCounter) Option {
	return func(c *Coordinator) { c.flushes = fc }
}

func New(window time.Duration, opts ...Option) *Coordinator {
	if window <= 0 {
		window = 500 * time.Millisecond
	}
	c := &Coordinator{
		window: window,
		forms:  make(map[string]*pending),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) entry(formID string) *pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.forms[formID]
	if !ok {
		p = &pending{}
		c.forms[formID] = p
	}
	return p
}

// settleLocked evicts the form's entry once nothing is scheduled or in
// flight, so settled forms do not accumulate in the map. Caller holds c.mu.
func (c *Coordinator) settleLocked(formID string, p *pending) {
	if cur, ok := c.forms[formID]; ok && cur == p && p.fn == nil && p.timer == nil && p.inflight == 0 {
		delete(c.forms, formID)
	}
}

// Schedule replaces any pending save for the form with fn and restarts the
// idle window. Later edits win: fn must capture the full current form state,
// not a delta.
func (c *Coordinator) Schedule(formID string, fn SaveFunc) {
	p := c.entry(formID)

	c.mu.Lock()
	if p.timer != nil {
		p.timer.Stop()
	}
	p.fn = fn
	p.timer = time.AfterFunc(c.window, func() { c.fire(formID, p) })
	c.mu.Unlock()
}

// fire runs the pending save when the idle window elapses.
func (c *Coordinator) fire(formID string, p *pending) {
	c.mu.Lock()
	fn := p.fn
	p.fn = nil
	p.timer = nil
	if fn == nil {
		// A Flush beat the timer here; whoever took fn settles the entry.
		c.mu.Unlock()
		return
	}
	p.inflight++
	c.mu.Unlock()

	if c.flushes != nil {
		c.flushes.Flushed("timer")
	}

	p.writeMu.Lock()
	err := fn(context.Background())
	p.writeMu.Unlock()
	if err != nil && c.logger != nil {
		c.logger.Error("debounced save failed", "form_id", formID, "error", err)
	}

	c.mu.Lock()
	p.inflight--
	c.settleLocked(formID, p)
	c.mu.Unlock()
}

// Flush cancels the pending timer and runs the pending save now, waiting for
// any in-flight write for the form to settle first. Components must call this
// before issuing a direct write for the same form.
func (c *Coordinator) Flush(ctx context.Context, formID string) error {
	c.mu.Lock()
	p, ok := c.forms[formID]
	if !ok {
		// No entry means nothing scheduled and nothing in flight.
		c.mu.Unlock()
		return nil
	}
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	fn := p.fn
	p.fn = nil
	p.inflight++
	c.mu.Unlock()

	// Blocks until an in-flight timer write (if any) completes, preserving
	// per-form write ordering.
	p.writeMu.Lock()
	var err error
	if fn != nil {
		if c.flushes != nil {
			c.flushes.Flushed("explicit")
		}
		err = fn(ctx)
	}
	p.writeMu.Unlock()

	c.mu.Lock()
	p.inflight--
	c.settleLocked(formID, p)
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("flush pending save for %s: %w", formID, err)
	}
	return nil
}

// Cancel drops the pending save without touching storage (form torn down,
// navigation away). Interaction-tracker state is flushed separately on
// unmount and is not affected.
func (c *Coordinator) Cancel(formID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.forms[formID]
	if !ok {
		return
	}
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	if p.fn != nil && c.flushes != nil {
		c.flushes.Flushed("cancel")
	}
	p.fn = nil
	c.settleLocked(formID, p)
}

// TrackedForms reports how many map entries the coordinator holds, settled
// writes included. Test hook.
func (c *Coordinator) TrackedForms() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.forms)
}

// PendingCount reports forms with a scheduled save. Test hook.
func (c *Coordinator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, p := range c.forms {
		if p.fn != nil {
			n++
		}
	}
	return n
}
