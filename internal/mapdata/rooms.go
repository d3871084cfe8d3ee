package mapdata

import (
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/ecolink-core/internal/event"
	"github.com/nerrad567/ecolink-core/internal/infrastructure/logging"
)

// defaultPollInterval is how often the major map is re-requested while a
// map consumer is subscribed. Pushes cover incremental changes; the poll
// catches the pieces the broker never sent.
const defaultPollInterval = 60 * time.Second

// Tracker composes the room list from the map set and subset streams.
//
// Rooms arrive piecemeal: the map set names the subset ids, then each
// subset resolves to a named region. The tracker collects the pieces and
// publishes a RoomsEvent once every expected subset arrived. A map change
// push restarts the collection through a fresh map query chain.
type Tracker struct {
	bus *event.Bus
	log *logging.Logger

	mu       sync.Mutex
	expected map[int]bool
	rooms    map[int]event.Room

	pollInterval time.Duration
	pollMu       sync.Mutex
	pollRefs     int
	pollStop     chan struct{}

	unsubs []func()
}

// NewTracker creates a room tracker on the given bus.
func NewTracker(bus *event.Bus, log *logging.Logger) *Tracker {
	if log == nil {
		log = logging.Default()
	}
	return &Tracker{
		bus:          bus,
		log:          log.With("component", "mapdata"),
		expected:     make(map[int]bool),
		rooms:        make(map[int]event.Room),
		pollInterval: defaultPollInterval,
	}
}

// Attach subscribes the tracker to the map streams. Call Detach when the
// session shuts down.
func (t *Tracker) Attach() {
	t.unsubs = append(t.unsubs,
		t.bus.Subscribe(event.KindMapSet, t.onMapSet),
		t.bus.Subscribe(event.KindMapSubset, t.onMapSubset),
		t.bus.Subscribe(event.KindCachedMapInfo, t.onMapSwitch),
		t.bus.Subscribe(event.KindMapChanged, t.onMapChanged),
	)

	// Map streams are only polled while someone downstream actually
	// consumes them; an idle client should not pull trace data.
	for _, kind := range []event.Kind{event.KindMapChanged, event.KindMajorMap, event.KindMapTrace} {
		t.bus.AddOnSubscriptionHook(kind, t.startPolling, t.stopPolling)
	}
}

// Detach unsubscribes the tracker from the bus and force-stops the poll
// loop regardless of remaining map consumers.
func (t *Tracker) Detach() {
	for _, unsub := range t.unsubs {
		unsub()
	}
	t.unsubs = nil

	t.pollMu.Lock()
	t.pollRefs = 0
	if t.pollStop != nil {
		close(t.pollStop)
		t.pollStop = nil
	}
	t.pollMu.Unlock()
}

// startPolling begins the periodic map request. One poll loop serves all
// map kinds; the reference count tracks how many kinds hold it open.
func (t *Tracker) startPolling() {
	t.pollMu.Lock()
	defer t.pollMu.Unlock()
	t.pollRefs++
	if t.pollStop != nil {
		return
	}
	stop := make(chan struct{})
	t.pollStop = stop
	go t.pollLoop(stop)
}

// stopPolling releases one reference and halts the loop when none remain.
// Safe to call when idle.
func (t *Tracker) stopPolling() {
	t.pollMu.Lock()
	defer t.pollMu.Unlock()
	if t.pollRefs > 0 {
		t.pollRefs--
	}
	if t.pollRefs > 0 || t.pollStop == nil {
		return
	}
	close(t.pollStop)
	t.pollStop = nil
}

func (t *Tracker) pollLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			// Refreshing a kind nobody subscribed to is a no-op, so
			// only the streams with live consumers are pulled.
			t.bus.RequestRefresh(event.KindMajorMap)
			t.bus.RequestRefresh(event.KindMapTrace)
		}
	}
}

// onMapSet resets the expectation when the room set arrives.
func (t *Tracker) onMapSet(e event.Event) {
	set, ok := e.(event.MapSetEvent)
	if !ok || set.Type != event.MapSetRooms {
		return
	}

	t.mu.Lock()
	t.expected = make(map[int]bool, len(set.Subsets))
	for _, id := range set.Subsets {
		t.expected[id] = true
	}
	// Drop rooms that no longer exist on the map.
	for id := range t.rooms {
		if !t.expected[id] {
			delete(t.rooms, id)
		}
	}
	t.mu.Unlock()

	t.publishIfComplete()
}

// onMapSubset records one resolved room.
func (t *Tracker) onMapSubset(e event.Event) {
	subset, ok := e.(event.MapSubsetEvent)
	if !ok || subset.Type != event.MapSetRooms {
		return
	}

	t.mu.Lock()
	t.rooms[subset.ID] = event.Room{
		Name:        subset.Name,
		ID:          subset.ID,
		Coordinates: subset.Coordinates,
	}
	t.mu.Unlock()

	t.publishIfComplete()
}

// onMapSwitch clears collected rooms when the active map changes.
func (t *Tracker) onMapSwitch(event.Event) {
	t.mu.Lock()
	t.expected = make(map[int]bool)
	t.rooms = make(map[int]event.Room)
	t.mu.Unlock()
}

// onMapChanged re-queries the map chain so the room list follows edits
// made in the vendor app.
func (t *Tracker) onMapChanged(event.Event) {
	t.log.Debug("map changed, re-querying rooms")
	t.bus.RequestRefresh(event.KindRooms)
}

// publishIfComplete notifies the room list once all expected subsets
// resolved.
func (t *Tracker) publishIfComplete() {
	t.mu.Lock()
	if len(t.expected) == 0 || len(t.rooms) < len(t.expected) {
		t.mu.Unlock()
		return
	}
	for id := range t.expected {
		if _, ok := t.rooms[id]; !ok {
			t.mu.Unlock()
			return
		}
	}
	rooms := make([]event.Room, 0, len(t.rooms))
	for _, room := range t.rooms {
		rooms = append(rooms, room)
	}
	t.mu.Unlock()

	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	t.bus.Notify(event.RoomsEvent{Rooms: rooms})
}
