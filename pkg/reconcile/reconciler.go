// Package reconcile keeps a client's local entity cache consistent with
// the server's change feed without re-fetching everything per event.
// One Watcher per entity kind coalesces bursts of insert/update events
// into a single debounced authoritative re-fetch, applies deletes
// immediately, and escalates to a full-collection reload when a payload
// cannot be resolved or an individual fetch fails.
package reconcile

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type ChangeType string

const (
	Insert ChangeType = "insert"
	Update ChangeType = "update"
	Delete ChangeType = "delete"
)

// Change is one raw event off the realtime feed. Delivery may be
// out of order and duplicated; both are harmless here (pending ids are
// a set, deletes are terminal).
type Change struct {
	EventID string         `json:"event_id"`
	Kind    string         `json:"kind"`
	Type    ChangeType     `json:"type"`
	Payload map[string]any `json:"payload"`
}

// Fetcher loads authoritative state for a single watched kind.
type Fetcher interface {
	FetchOne(ctx context.Context, id uint64) (any, error)
	FetchAll(ctx context.Context) (map[uint64]any, error)
}

// Cache is the client-local store the watcher reconciles into. Calls
// are synchronous; implementations persist as they see fit.
type Cache interface {
	Put(id uint64, v any)
	Delete(id uint64)
	ReplaceAll(entities map[uint64]any)
}

// Options tunes the two debounce windows.
type Options struct {
	Debounce       time.Duration // trailing-edge window for per-id coalescing
	ReloadDebounce time.Duration // longer window for the full-collection fallback
	Logger         *zap.Logger
}

// Watcher is the per-kind state machine: Idle, or Pending with a set of
// ids and one outstanding timer. All state is guarded by mu; the fetch
// batch is strictly serialized per kind (a new cycle cannot start until
// the previous drain finishes), while different kinds run independently.
type Watcher struct {
	kind  string
	fetch Fetcher
	cache Cache

	debounce       time.Duration
	reloadDebounce time.Duration
	log            *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	pending     map[uint64]struct{}
	timer       *time.Timer
	reloadTimer *time.Timer
	draining    bool
	closed      bool
}

func NewWatcher(kind string, fetch Fetcher, cache Cache, opts Options) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}
	if opts.ReloadDebounce <= 0 {
		opts.ReloadDebounce = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		kind:           kind,
		fetch:          fetch,
		cache:          cache,
		debounce:       opts.Debounce,
		reloadDebounce: opts.ReloadDebounce,
		log:            opts.Logger,
		ctx:            ctx,
		cancel:         cancel,
		pending:        make(map[uint64]struct{}),
	}
}

// Apply feeds one raw change event into the watcher. It never blocks on
// fetch work and never surfaces an error to the event source.
func (w *Watcher) Apply(ch Change) {
	if ch.Type == Delete {
		id, ok := NormalizeID(ch.Payload)
		if !ok {
			w.scheduleReload()
			return
		}
		// Deletes are terminal: bypass coalescing, drop any pending
		// fetch for the id, and write through immediately.
		w.mu.Lock()
		delete(w.pending, id)
		closed := w.closed
		w.mu.Unlock()
		if !closed {
			w.cache.Delete(id)
		}
		return
	}

	id, ok := NormalizeID(ch.Payload)
	if !ok {
		w.scheduleReload()
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.pending[id] = struct{}{}
	if w.draining {
		// The drain restarts the timer itself once it finishes.
		return
	}
	// Debounce, not throttle: every event pushes the fire to the
	// trailing edge of the burst.
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

// fire drains the pending set: one authoritative fetch per id, each
// success merged into the cache immediately. Any individual failure
// schedules the full reload instead of retrying inline.
func (w *Watcher) fire() {
	w.mu.Lock()
	if w.closed || w.draining || len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	ids := make([]uint64, 0, len(w.pending))
	for id := range w.pending {
		ids = append(ids, id)
	}
	w.pending = make(map[uint64]struct{})
	w.draining = true
	w.timer = nil
	w.mu.Unlock()

	failed := false
	for _, id := range ids {
		v, err := w.fetch.FetchOne(w.ctx, id)
		if err != nil {
			failed = true
			w.log.Warn("reconcile: fetch failed",
				zap.String("kind", w.kind), zap.Uint64("id", id), zap.Error(err))
			continue
		}
		w.cache.Put(id, v)
	}
	if failed {
		w.scheduleReload()
	}

	w.mu.Lock()
	w.draining = false
	if len(w.pending) > 0 && !w.closed {
		// Events arrived mid-drain; start the next cycle.
		w.timer = time.AfterFunc(w.debounce, w.fire)
	}
	w.mu.Unlock()
}

// scheduleReload arms (or re-arms) the full-collection fallback with
// its own longer debounce window.
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.reloadTimer != nil {
		w.reloadTimer.Stop()
	}
	w.reloadTimer = time.AfterFunc(w.reloadDebounce, w.reload)
}

func (w *Watcher) reload() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.reloadTimer = nil
	w.mu.Unlock()

	all, err := w.fetch.FetchAll(w.ctx)
	if err != nil {
		w.log.Warn("reconcile: full reload failed, rescheduling",
			zap.String("kind", w.kind), zap.Error(err))
		w.scheduleReload()
		return
	}
	w.cache.ReplaceAll(all)
}

// Close tears the watcher down: outstanding timers are cancelled and
// the pending set is discarded, not flushed.
func (w *Watcher) Close() {
	w.mu.Lock()
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	if w.reloadTimer != nil {
		w.reloadTimer.Stop()
		w.reloadTimer = nil
	}
	w.pending = make(map[uint64]struct{})
	w.mu.Unlock()
	w.cancel()
}

// Reconciler routes feed events to per-kind watchers. Kinds not being
// watched are ignored.
type Reconciler struct {
	mu       sync.RWMutex
	watchers map[string]*Watcher
}

func NewReconciler() *Reconciler {
	return &Reconciler{watchers: make(map[string]*Watcher)}
}

// Watch registers a watcher for an entity kind, replacing (and closing)
// any previous one.
func (r *Reconciler) Watch(kind string, fetch Fetcher, cache Cache, opts Options) *Watcher {
	w := NewWatcher(kind, fetch, cache, opts)
	r.mu.Lock()
	old := r.watchers[kind]
	r.watchers[kind] = w
	r.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return w
}

func (r *Reconciler) Apply(ch Change) {
	r.mu.RLock()
	w := r.watchers[ch.Kind]
	r.mu.RUnlock()
	if w != nil {
		w.Apply(ch)
	}
}

func (r *Reconciler) Close() {
	r.mu.Lock()
	watchers := r.watchers
	r.watchers = make(map[string]*Watcher)
	r.mu.Unlock()
	for _, w := range watchers {
		w.Close()
	}
}
