package event

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/ecolink-core/internal/infrastructure/logging"
)

// Command is the minimal view the bus needs of an executable device command.
// The full command contract lives in the protocol layer; the bus only ever
// hands commands back to its execute callback.
type Command interface {
	Name() string
}

// ExecuteFunc sends one command to the device and returns once the exchange
// completed. The bus never interprets the result beyond logging failures.
type ExecuteFunc func(ctx context.Context, cmd Command) error

// RefreshCommandsFunc resolves the commands that re-query the device state
// backing the given kind. An empty slice marks the kind as not refreshable.
type RefreshCommandsFunc func(kind Kind) []Command

// subscriber is one registered callback with its removal handle.
type subscriber struct {
	id int
	fn func(Event)
}

// slot holds all per-kind state. Slots are created lazily on first use and
// never removed.
type slot struct {
	mu          sync.Mutex
	subscribers []subscriber
	last        Event
	hasLast     bool

	debounce time.Duration
	timer    *time.Timer

	// refreshGuard has capacity one; holding the token means a refresh
	// for this kind is in flight.
	refreshGuard chan struct{}

	onFirstSubscribe  []func()
	onLastUnsubscribe []func()
}

// Bus is the typed event bus at the core of the client.
//
// It fans device state snapshots out to subscribers, keeps the latest
// snapshot per kind for replay, suppresses duplicate notifications,
// coalesces bursts through per-kind debouncing and drives state refreshes
// through injected command callbacks.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Subscriber callbacks run synchronously on the notifying goroutine
//     (or the debounce timer goroutine) with no bus locks held, so they
//     may call back into the bus freely. Callbacks doing blocking work
//     should hand it off themselves.
type Bus struct {
	mu    sync.Mutex
	slots map[Kind]*slot

	nextID  int
	execute ExecuteFunc
	refresh RefreshCommandsFunc
	log     *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an event bus.
//
// Parameters:
//   - log: Logger for bus diagnostics
//   - execute: Callback used to send refresh commands to the device
//   - refresh: Callback resolving the refresh commands per kind
//
// Returns:
//   - *Bus: Ready-to-use bus; call Teardown when done
func New(log *logging.Logger, execute ExecuteFunc, refresh RefreshCommandsFunc) *Bus {
	if log == nil {
		log = logging.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		slots:   make(map[Kind]*slot),
		execute: execute,
		refresh: refresh,
		log:     log.With("component", "event_bus"),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// slot returns the state for kind, creating it on first use.
func (b *Bus) slot(kind Kind) *slot {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.slots[kind]
	if !ok {
		s = &slot{refreshGuard: make(chan struct{}, 1)}
		b.slots[kind] = s
	}
	return s
}

// Subscribe registers a callback for one event kind.
//
// If a snapshot of this kind is already cached the callback receives it
// asynchronously and no refresh is issued; the cache stands in for the
// device round trip. Otherwise adding the first subscriber of a kind
// triggers a refresh and runs any registered first-subscribe hooks.
//
// Parameters:
//   - kind: Event kind to subscribe to
//   - fn: Callback invoked for every accepted event of that kind
//
// Returns:
//   - func(): Unsubscribe handle; safe to call once, from any goroutine
func (b *Bus) Subscribe(kind Kind, fn func(Event)) func() {
	s := b.slot(kind)

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.mu.Unlock()

	s.mu.Lock()
	first := len(s.subscribers) == 0
	s.subscribers = append(s.subscribers, subscriber{id: id, fn: fn})
	replay := s.last
	hasReplay := s.hasLast
	firstHooks := append([]func(){}, s.onFirstSubscribe...)
	s.mu.Unlock()

	if hasReplay {
		// Replayed off the caller's goroutine so a slow callback cannot
		// block Subscribe.
		go func() {
			if b.ctx.Err() != nil {
				return
			}
			fn(replay)
		}()
	} else if first {
		for _, hook := range firstHooks {
			hook()
		}
		b.RequestRefresh(kind)
	}

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(kind, id) })
	}
}

func (b *Bus) unsubscribe(kind Kind, id int) {
	s := b.slot(kind)

	s.mu.Lock()
	for i, sub := range s.subscribers {
		if sub.id == id {
			s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
			break
		}
	}
	empty := len(s.subscribers) == 0
	lastHooks := append([]func(){}, s.onLastUnsubscribe...)
	s.mu.Unlock()

	if empty {
		for _, hook := range lastHooks {
			hook()
		}
	}
}

// AddOnSubscriptionHook registers lifecycle hooks for one kind.
//
// onFirst runs whenever the kind gains its first subscriber, onLast
// whenever it loses its last one. Either may be nil.
func (b *Bus) AddOnSubscriptionHook(kind Kind, onFirst, onLast func()) {
	s := b.slot(kind)
	s.mu.Lock()
	defer s.mu.Unlock()
	if onFirst != nil {
		s.onFirstSubscribe = append(s.onFirstSubscribe, onFirst)
	}
	if onLast != nil {
		s.onLastUnsubscribe = append(s.onLastUnsubscribe, onLast)
	}
}

// HasSubscribers reports whether at least one callback is registered for kind.
func (b *Bus) HasSubscribers(kind Kind) bool {
	s := b.slot(kind)
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers) > 0
}

// GetLastEvent returns the cached snapshot for kind.
//
// Returns:
//   - Event: Most recent accepted event, nil if none was seen yet
//   - bool: Whether a snapshot exists
func (b *Bus) GetLastEvent(kind Kind) (Event, bool) {
	s := b.slot(kind)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.hasLast
}

// SetDebounce sets the coalescing window for one kind.
//
// While the window is non-zero every Notify cancels the previously
// scheduled delivery and schedules the newest event instead, so a burst
// collapses into its final value. Zero restores immediate delivery.
func (b *Bus) SetDebounce(kind Kind, window time.Duration) {
	s := b.slot(kind)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debounce = window
	if window == 0 && s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Notify publishes an event.
//
// Events equal to the cached snapshot of the same kind are suppressed.
// With a debounce window configured the event is scheduled instead of
// delivered and Notify reports true; duplicate suppression then happens
// at delivery time.
//
// Parameters:
//   - e: Event to publish
//
// Returns:
//   - bool: Whether the event was delivered or scheduled (false when
//     suppressed as a duplicate)
func (b *Bus) Notify(e Event) bool {
	kind := e.Kind()
	s := b.slot(kind)

	s.mu.Lock()
	if s.debounce > 0 {
		if s.timer != nil {
			s.timer.Stop()
		}
		window := s.debounce
		s.timer = time.AfterFunc(window, func() {
			if b.ctx.Err() != nil {
				return
			}
			b.deliver(kind, s, e)
		})
		s.mu.Unlock()
		return true
	}
	s.mu.Unlock()

	return b.deliver(kind, s, e)
}

// deliver applies correction rules, suppresses duplicates and invokes the
// subscriber callbacks. Called with no locks held.
func (b *Bus) deliver(kind Kind, s *slot, e Event) bool {
	e = b.correct(kind, s, e)

	s.mu.Lock()
	if s.hasLast && s.last.Equal(e) {
		s.mu.Unlock()
		b.log.Debug("duplicate event suppressed", "kind", kind.String())
		return false
	}
	prev, hadPrev := s.last, s.hasLast
	s.last = e
	s.hasLast = true
	subs := append([]subscriber{}, s.subscribers...)
	s.mu.Unlock()

	b.log.Debug("event delivered", "kind", kind.String(), "subscribers", len(subs))
	for _, sub := range subs {
		sub.fn(e)
	}

	if ae, ok := e.(AvailabilityEvent); ok && ae.Available && hadPrev {
		if pa, ok := prev.(AvailabilityEvent); ok && !pa.Available {
			b.refreshAllAfterRecovery()
		}
	}
	return true
}

// correct rewrites events that are known to be misreported by the device.
//
// A device sitting on the charger reports itself idle right after waking
// up; the docked state is kept until an explicit transition arrives.
func (b *Bus) correct(kind Kind, s *slot, e Event) Event {
	se, ok := e.(StateEvent)
	if !ok || se.State != StateIdle {
		return e
	}
	s.mu.Lock()
	last, hasLast := s.last, s.hasLast
	s.mu.Unlock()
	if hasLast {
		if prev, ok := last.(StateEvent); ok && prev.State == StateDocked {
			b.log.Debug("idle state corrected to docked", "kind", kind.String())
			return StateEvent{State: StateDocked}
		}
	}
	return e
}

// refreshAllAfterRecovery refreshes every subscribed kind except
// availability itself. Fired when the device transitions back to
// available after an outage; cached snapshots are stale by then.
func (b *Bus) refreshAllAfterRecovery() {
	b.mu.Lock()
	kinds := make([]Kind, 0, len(b.slots))
	for kind := range b.slots {
		if kind != KindAvailability {
			kinds = append(kinds, kind)
		}
	}
	b.mu.Unlock()

	for _, kind := range kinds {
		b.RequestRefresh(kind)
	}
}

// RequestRefresh re-queries the device state backing one kind.
//
// The refresh is skipped when the kind has no subscribers, no refresh
// commands, or a refresh for it is already in flight. Commands run
// concurrently in the background; failures are logged, not returned.
func (b *Bus) RequestRefresh(kind Kind) {
	if !b.HasSubscribers(kind) {
		return
	}
	commands := b.refresh(kind)
	if len(commands) == 0 {
		b.log.Debug("no refresh commands for kind", "kind", kind.String())
		return
	}

	s := b.slot(kind)
	select {
	case s.refreshGuard <- struct{}{}:
	default:
		b.log.Debug("refresh already in flight", "kind", kind.String())
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() { <-s.refreshGuard }()

		g, ctx := errgroup.WithContext(b.ctx)
		for _, cmd := range commands {
			g.Go(func() error {
				return b.execute(ctx, cmd)
			})
		}
		if err := g.Wait(); err != nil {
			b.log.Warn("refresh failed", "kind", kind.String(), "error", err)
		}
	}()
}

// Teardown stops all pending debounce timers and background refreshes and
// waits for them to finish. The bus must not be used afterwards.
func (b *Bus) Teardown() {
	b.cancel()

	b.mu.Lock()
	slots := make([]*slot, 0, len(b.slots))
	for _, s := range b.slots {
		slots = append(slots, s)
	}
	b.mu.Unlock()

	for _, s := range slots {
		s.mu.Lock()
		if s.timer != nil {
			s.timer.Stop()
			s.timer = nil
		}
		s.mu.Unlock()
	}

	b.wg.Wait()
}
