package protocol

import (
	"context"
	"net/url"
	"sync"
	"testing"

	"github.com/nerrad567/ecolink-core/internal/event"
)

type fakeBus struct {
	mu       sync.Mutex
	notified []event.Event
}

func (b *fakeBus) Notify(e event.Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notified = append(b.notified, e)
	return true
}

func (b *fakeBus) RequestRefresh(event.Kind) {}

func (b *fakeBus) GetLastEvent(event.Kind) (event.Event, bool) { return nil, false }

type fakePoster struct {
	mu       sync.Mutex
	requests []string
	response map[string]any
}

func (p *fakePoster) PostAuthenticated(_ context.Context, path string, body map[string]any, _ url.Values) (map[string]any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	name, _ := body["cmdName"].(string)
	p.requests = append(p.requests, path+":"+name)
	return p.response, nil
}

type fakeCommand struct {
	name    string
	targets bool
	handle  func(bus EventBus, resp any) CommandResult
}

func (c fakeCommand) Name() string          { return c.name }
func (c fakeCommand) DataType() DataType    { return DataTypeJSON }
func (c fakeCommand) Payload() (any, error) { return map[string]any{}, nil }
func (c fakeCommand) TargetsDevice() bool   { return c.targets }
func (c fakeCommand) HandleResponse(bus EventBus, resp any) CommandResult {
	if c.handle == nil {
		return ResultSuccess()
	}
	return c.handle(bus, resp)
}

func testDevice() DeviceInfo {
	return DeviceInfo{ID: "E0001234", Class: "yna5xi", Resource: "rGeX", DataType: DataTypeJSON}
}

func okResponse() map[string]any {
	return map[string]any{"ret": "ok", "resp": map[string]any{"body": map[string]any{"code": float64(0)}}}
}

func TestExecuteReportsDeviceReached(t *testing.T) {
	poster := &fakePoster{response: okResponse()}
	x := NewExecutor(poster, testDevice(), nil)
	bus := &fakeBus{}

	reached, err := x.Execute(context.Background(), bus, fakeCommand{name: "getBattery", targets: true})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !reached {
		t.Error("device-targeting command with success handling should report reached")
	}

	reached, err = x.Execute(context.Background(), bus, fakeCommand{name: "GetCleanLogs", targets: false})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if reached {
		t.Error("portal-answered command must never report device reached")
	}
}

func TestExecuteOfflineRejection(t *testing.T) {
	poster := &fakePoster{response: map[string]any{"ret": "fail", "errno": float64(4200)}}
	x := NewExecutor(poster, testDevice(), nil)
	bus := &fakeBus{}

	reached, err := x.Execute(context.Background(), bus, fakeCommand{name: "getBattery", targets: true})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if reached {
		t.Error("offline rejection must not report device reached")
	}

	bus.mu.Lock()
	defer bus.mu.Unlock()
	if len(bus.notified) != 1 || bus.notified[0] != (event.AvailabilityEvent{Available: false}) {
		t.Errorf("notified = %v, want single unavailable event", bus.notified)
	}
}

func TestExecuteContainsHandlerPanic(t *testing.T) {
	poster := &fakePoster{response: okResponse()}
	x := NewExecutor(poster, testDevice(), nil)

	cmd := fakeCommand{name: "getBattery", targets: true, handle: func(EventBus, any) CommandResult {
		panic("malformed payload")
	}}

	reached, err := x.Execute(context.Background(), &fakeBus{}, cmd)
	if err != nil {
		t.Fatalf("Execute should contain the panic, got error: %v", err)
	}
	if reached {
		t.Error("panicking handler must not report device reached")
	}
}

func TestExecuteRunsFollowUpCommands(t *testing.T) {
	poster := &fakePoster{response: okResponse()}
	x := NewExecutor(poster, testDevice(), nil)

	follow := fakeCommand{name: "getMapSet", targets: true}
	parent := fakeCommand{name: "getCachedMapInfo", targets: true, handle: func(EventBus, any) CommandResult {
		return CommandResult{State: HandlingSuccess, Next: []Command{follow, follow}}
	}}

	if _, err := x.Execute(context.Background(), &fakeBus{}, parent); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	poster.mu.Lock()
	defer poster.mu.Unlock()
	followUps := 0
	for _, r := range poster.requests {
		if r == "iot/devmanager.do:getMapSet" {
			followUps++
		}
	}
	if followUps != 2 {
		t.Errorf("follow-up executions = %d, want 2", followUps)
	}
}

func TestExecuteSkipsFollowUpsOnFailure(t *testing.T) {
	poster := &fakePoster{response: okResponse()}
	x := NewExecutor(poster, testDevice(), nil)

	follow := fakeCommand{name: "getMapSet", targets: true}
	parent := fakeCommand{name: "getCachedMapInfo", targets: true, handle: func(EventBus, any) CommandResult {
		return CommandResult{State: HandlingFailed, Next: []Command{follow}}
	}}

	if _, err := x.Execute(context.Background(), &fakeBus{}, parent); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	poster.mu.Lock()
	defer poster.mu.Unlock()
	for _, r := range poster.requests {
		if r == "iot/devmanager.do:getMapSet" {
			t.Fatal("follow-up executed despite failed handling")
		}
	}
}
