package event

import (
	"context"
	"sync"
	"testing"
	"time"
)

type testCommand struct {
	name string
}

func (c testCommand) Name() string { return c.name }

// recorder collects executed commands and signals each execution.
type recorder struct {
	mu       sync.Mutex
	executed []string
	signal   chan string
}

func newRecorder() *recorder {
	return &recorder{signal: make(chan string, 32)}
}

func (r *recorder) execute(_ context.Context, cmd Command) error {
	r.mu.Lock()
	r.executed = append(r.executed, cmd.Name())
	r.mu.Unlock()
	r.signal <- cmd.Name()
	return nil
}

func (r *recorder) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.executed {
		if c == name {
			n++
		}
	}
	return n
}

func (r *recorder) waitFor(t *testing.T, name string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-r.signal:
			if got == name {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for execution of %q", name)
		}
	}
}

func refreshTable(table map[Kind][]Command) RefreshCommandsFunc {
	return func(kind Kind) []Command {
		return table[kind]
	}
}

func noRefresh(Kind) []Command { return nil }

func noExecute(context.Context, Command) error { return nil }

func TestSubscribeReplaysCachedEvent(t *testing.T) {
	bus := New(nil, noExecute, noRefresh)
	defer bus.Teardown()

	if !bus.Notify(BatteryEvent{Value: 80}) {
		t.Fatal("first notify should be delivered")
	}

	got := make(chan Event, 1)
	bus.Subscribe(KindBattery, func(e Event) {
		got <- e
	})

	select {
	case e := <-got:
		if e != (BatteryEvent{Value: 80}) {
			t.Errorf("replayed event = %v, want BatteryEvent{80}", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cached event not replayed on subscribe")
	}
}

func TestWarmCacheSuppressesRefreshOnSubscribe(t *testing.T) {
	rec := newRecorder()
	bus := New(nil, rec.execute, refreshTable(map[Kind][]Command{
		KindBattery: {testCommand{name: "get_battery"}},
	}))
	defer bus.Teardown()

	var firsts int
	bus.AddOnSubscriptionHook(KindBattery, func() { firsts++ }, nil)

	bus.Notify(BatteryEvent{Value: 80})

	got := make(chan Event, 1)
	bus.Subscribe(KindBattery, func(e Event) {
		got <- e
	})

	select {
	case e := <-got:
		if e != (BatteryEvent{Value: 80}) {
			t.Errorf("replayed event = %v, want BatteryEvent{80}", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cached event not replayed on subscribe")
	}

	// The cached snapshot stands in for the device round trip.
	select {
	case name := <-rec.signal:
		t.Errorf("subscribe with warm cache executed refresh %q", name)
	case <-time.After(50 * time.Millisecond):
	}
	if firsts != 0 {
		t.Errorf("first-subscribe hook ran %d times with warm cache, want 0", firsts)
	}
}

func TestNotifySuppressesDuplicates(t *testing.T) {
	bus := New(nil, noExecute, noRefresh)
	defer bus.Teardown()

	var mu sync.Mutex
	var got []Event
	bus.Subscribe(KindBattery, func(e Event) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	})

	if !bus.Notify(BatteryEvent{Value: 50}) {
		t.Fatal("first notify should be delivered")
	}
	if bus.Notify(BatteryEvent{Value: 50}) {
		t.Error("duplicate notify should be suppressed")
	}
	if !bus.Notify(BatteryEvent{Value: 49}) {
		t.Fatal("changed value should be delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("subscriber called %d times, want 2", len(got))
	}
}

func TestNoDeliveryWithoutSubscribers(t *testing.T) {
	rec := newRecorder()
	bus := New(nil, rec.execute, refreshTable(map[Kind][]Command{
		KindBattery: {testCommand{name: "get_battery"}},
	}))
	defer bus.Teardown()

	bus.RequestRefresh(KindBattery)

	select {
	case name := <-rec.signal:
		t.Fatalf("refresh executed %q with no subscribers", name)
	case <-time.After(50 * time.Millisecond):
	}

	// Caching still works without subscribers.
	bus.Notify(BatteryEvent{Value: 10})
	if e, ok := bus.GetLastEvent(KindBattery); !ok || e != (BatteryEvent{Value: 10}) {
		t.Errorf("GetLastEvent = %v, %v; want cached BatteryEvent{10}", e, ok)
	}
}

func TestFirstSubscribeTriggersRefresh(t *testing.T) {
	rec := newRecorder()
	bus := New(nil, rec.execute, refreshTable(map[Kind][]Command{
		KindBattery: {testCommand{name: "get_battery"}},
	}))
	defer bus.Teardown()

	bus.Subscribe(KindBattery, func(Event) {})
	rec.waitFor(t, "get_battery")

	// A second subscriber must not trigger another refresh.
	bus.Subscribe(KindBattery, func(Event) {})
	select {
	case <-rec.signal:
		t.Error("second subscriber triggered an extra refresh")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRefreshSingleFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	executions := 0

	execute := func(context.Context, Command) error {
		mu.Lock()
		executions++
		mu.Unlock()
		close(started)
		<-release
		return nil
	}

	bus := New(nil, execute, refreshTable(map[Kind][]Command{
		KindBattery: {testCommand{name: "get_battery"}},
	}))

	bus.Subscribe(KindBattery, func(Event) {})
	<-started

	// Refresh is in flight; further requests must be dropped.
	bus.RequestRefresh(KindBattery)
	bus.RequestRefresh(KindBattery)
	close(release)
	bus.Teardown()

	mu.Lock()
	defer mu.Unlock()
	if executions != 1 {
		t.Errorf("executions = %d, want 1", executions)
	}
}

func TestDebounceCoalescesBurst(t *testing.T) {
	bus := New(nil, noExecute, noRefresh)
	defer bus.Teardown()

	var mu sync.Mutex
	var got []Event
	bus.Subscribe(KindMinorMap, func(e Event) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	})
	bus.SetDebounce(KindMinorMap, 30*time.Millisecond)

	for i := range 5 {
		bus.Notify(MinorMapEvent{Index: i, Value: "piece"})
	}

	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("delivered %d events, want 1", len(got))
	}
	if got[0] != (MinorMapEvent{Index: 4, Value: "piece"}) {
		t.Errorf("delivered event = %v, want final burst value", got[0])
	}
}

func TestIdleCorrectedToDockedWhileOnCharger(t *testing.T) {
	bus := New(nil, noExecute, noRefresh)
	defer bus.Teardown()

	var mu sync.Mutex
	var got []StateEvent
	bus.Subscribe(KindState, func(e Event) {
		mu.Lock()
		got = append(got, e.(StateEvent))
		mu.Unlock()
	})

	bus.Notify(StateEvent{State: StateDocked})

	// The corrected event equals the cached docked state and is dropped.
	if bus.Notify(StateEvent{State: StateIdle}) {
		t.Error("idle report while docked should be suppressed")
	}
	if e, _ := bus.GetLastEvent(KindState); e != (StateEvent{State: StateDocked}) {
		t.Errorf("cached state = %v, want docked", e)
	}

	// An explicit transition away from the charger passes through.
	if !bus.Notify(StateEvent{State: StateCleaning}) {
		t.Fatal("cleaning state should be delivered")
	}
	if !bus.Notify(StateEvent{State: StateIdle}) {
		t.Fatal("idle state after cleaning should be delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []StateEvent{{State: StateDocked}, {State: StateCleaning}, {State: StateIdle}}
	if len(got) != len(want) {
		t.Fatalf("delivered %d events, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestAvailabilityRecoveryRefreshesSubscribedKinds(t *testing.T) {
	rec := newRecorder()
	bus := New(nil, rec.execute, refreshTable(map[Kind][]Command{
		KindBattery: {testCommand{name: "get_battery"}},
		KindState:   {testCommand{name: "get_charge_state"}},
	}))
	defer bus.Teardown()

	bus.Subscribe(KindBattery, func(Event) {})
	bus.Subscribe(KindState, func(Event) {})
	bus.Subscribe(KindAvailability, func(Event) {})
	rec.waitFor(t, "get_battery")
	rec.waitFor(t, "get_charge_state")

	bus.Notify(AvailabilityEvent{Available: false})
	bus.Notify(AvailabilityEvent{Available: true})

	rec.waitFor(t, "get_battery")
	rec.waitFor(t, "get_charge_state")

	if n := rec.count("get_battery"); n != 2 {
		t.Errorf("battery refreshed %d times, want 2", n)
	}
}

func TestAvailabilityFirstReportDoesNotCascade(t *testing.T) {
	rec := newRecorder()
	bus := New(nil, rec.execute, refreshTable(map[Kind][]Command{
		KindBattery: {testCommand{name: "get_battery"}},
	}))
	defer bus.Teardown()

	bus.Subscribe(KindBattery, func(Event) {})
	rec.waitFor(t, "get_battery")

	// Becoming available without a preceding outage is not a recovery.
	bus.Notify(AvailabilityEvent{Available: true})

	select {
	case <-rec.signal:
		t.Error("initial availability report triggered a cascade refresh")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeAndHooks(t *testing.T) {
	bus := New(nil, noExecute, noRefresh)
	defer bus.Teardown()

	var firsts, lasts int
	bus.AddOnSubscriptionHook(KindRooms, func() { firsts++ }, func() { lasts++ })

	unsubA := bus.Subscribe(KindRooms, func(Event) {})
	unsubB := bus.Subscribe(KindRooms, func(Event) {})
	if firsts != 1 {
		t.Fatalf("first-subscribe hook ran %d times, want 1", firsts)
	}

	unsubA()
	if lasts != 0 {
		t.Fatal("last-unsubscribe hook ran while a subscriber remains")
	}
	unsubB()
	unsubB() // second call is a no-op
	if lasts != 1 {
		t.Errorf("last-unsubscribe hook ran %d times, want 1", lasts)
	}

	if bus.HasSubscribers(KindRooms) {
		t.Error("HasSubscribers should report false after all unsubscribed")
	}
}
