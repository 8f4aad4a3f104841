// Package eventbus implements the typed publish/subscribe core of the
// backtest pipeline: priority-ordered synchronous dispatch, fingerprint
// deduplication, and batch draining.
package eventbus

import (
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"

	"quantforge/internal/apperr"
)

// Handler processes one event. A non-nil return does not abort dispatch to
// other handlers for the same event — it is recorded in the bus's error log
// and dispatch continues.
type Handler func(ev Event) error

// DedupMode selects the bus's deduplication behavior.
type DedupMode int

const (
	// DedupNone performs no deduplication.
	DedupNone DedupMode = iota
	// DedupByFingerprint drops events whose fingerprint has already been
	// observed in this run.
	DedupByFingerprint
)

// SubscriptionID identifies a registered handler for Unsubscribe. Handler
// values (funcs) are not comparable in Go, so Subscribe returns a token
// instead of requiring the original func value back.
type SubscriptionID uint64

type subscription struct {
	id       SubscriptionID
	priority int
	seq      uint64 // registration order, used to break priority ties
	handler  Handler
}

// Bus is a synchronous, priority-ordered, deduplicating event dispatcher.
// One Bus belongs to exactly one run; construct a fresh Bus per backtest
// combination rather than sharing one across runs, so concurrent
// evaluations never leak state into one another.
type Bus struct {
	mu       sync.Mutex
	handlers map[Kind][]subscription
	nextID   SubscriptionID
	nextSeq  uint64

	dedupMode DedupMode
	seen      map[uint64]struct{}
	dropped   int

	batching bool
	queue    []Event

	errs    *apperr.Log
	onError func(kind Kind, err error)
}

// New creates an empty Bus with the given deduplication mode.
func New(mode DedupMode) *Bus {
	return &Bus{
		handlers:  make(map[Kind][]subscription),
		dedupMode: mode,
		seen:      make(map[uint64]struct{}),
		errs:      apperr.NewLog(),
	}
}

// Subscribe registers handler for kind at priority (higher runs earlier).
// Ties are broken by registration order. Returns a token for Unsubscribe.
func (b *Bus) Subscribe(kind Kind, priority int, handler Handler) SubscriptionID {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.nextSeq++
	sub := subscription{id: b.nextID, priority: priority, seq: b.nextSeq, handler: handler}

	subs := append(b.handlers[kind], sub)
	sort.SliceStable(subs, func(i, j int) bool {
		if subs[i].priority != subs[j].priority {
			return subs[i].priority > subs[j].priority
		}
		return subs[i].seq < subs[j].seq
	})
	b.handlers[kind] = subs

	return sub.id
}

// Unsubscribe removes a handler. Idempotent — unsubscribing an unknown or
// already-removed ID is a no-op.
func (b *Bus) Unsubscribe(kind Kind, id SubscriptionID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[kind]
	for i, s := range subs {
		if s.id == id {
			b.handlers[kind] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Publish delivers ev to all handlers subscribed to ev.Kind() in descending
// priority order, or enqueues it if a batch is active. Handler errors are
// recorded and do not abort dispatch to remaining handlers.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()

	if fp, ok := ev.Fingerprint(); ok && b.dedupMode == DedupByFingerprint {
		h := xxhash.Sum64String(string(ev.Kind()) + "/" + fp)
		if _, dup := b.seen[h]; dup {
			b.dropped++
			b.mu.Unlock()
			return
		}
		b.seen[h] = struct{}{}
	}

	if b.batching {
		b.queue = append(b.queue, ev)
		b.mu.Unlock()
		return
	}

	b.mu.Unlock()
	b.dispatch(ev)
}

// dispatch runs every handler registered for ev.Kind(), in priority order,
// to completion. Emissions made by a handler (via Publish) are either
// queued (batch mode) or fully processed recursively before control returns
// to this loop — so they never interleave with this event's own sibling
// handlers.
func (b *Bus) dispatch(ev Event) {
	b.mu.Lock()
	subs := append([]subscription(nil), b.handlers[ev.Kind()]...)
	b.mu.Unlock()

	for _, s := range subs {
		err := b.safeInvoke(s.handler, ev)
		if err != nil {
			b.mu.Lock()
			b.errs.Record(string(ev.Kind()), err)
			hook := b.onError
			b.mu.Unlock()
			if hook != nil {
				hook(ev.Kind(), err)
			}
		}
	}
}

// SetErrorHook installs fn to be called, in addition to the run's error
// log, whenever a handler returns an error. Unlike the error log, the hook
// survives Reset — it is wiring (telemetry), not run state.
func (b *Bus) SetErrorHook(fn func(kind Kind, err error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = fn
}

// safeInvoke calls handler, converting a panic into a KindHandlerPanic
// error so a single misbehaving handler cannot abort the bar loop.
func (b *Bus) safeInvoke(handler Handler, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperr.Newf(apperr.KindHandlerPanic, "eventbus.dispatch", "handler panicked: %v", r)
		}
	}()
	return handler(ev)
}

// StartBatch begins batch mode: subsequent Publish calls enqueue rather
// than dispatch.
func (b *Bus) StartBatch() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.batching = true
}

// EndBatch drains the queue in FIFO order. Each drained event is dispatched
// synchronously; any events it emits are appended to the same queue (batch
// mode remains active for the duration of the drain) so that emissions are
// processed breadth-first until the queue is empty, then batch mode ends.
func (b *Bus) EndBatch() {
	for {
		b.mu.Lock()
		if len(b.queue) == 0 {
			b.batching = false
			b.mu.Unlock()
			return
		}
		ev := b.queue[0]
		b.queue = b.queue[1:]
		b.mu.Unlock()

		b.dispatch(ev)
	}
}

// InBatch reports whether batch mode is currently active.
func (b *Bus) InBatch() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.batching
}

// Reset clears all handlers, the dedup table, and any pending batch, so the
// Bus can be reused as if newly constructed. Prefer constructing a fresh Bus
// per run; Reset exists for components that want to reuse allocations.
func (b *Bus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[Kind][]subscription)
	b.seen = make(map[uint64]struct{})
	b.dropped = 0
	b.batching = false
	b.queue = nil
	b.errs = apperr.NewLog()
}

// Errors returns the run-scoped error log accumulated by dispatch.
func (b *Bus) Errors() *apperr.Log {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.errs
}

// Dropped returns the number of events dropped by fingerprint deduplication.
func (b *Bus) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
