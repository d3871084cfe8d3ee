package transport

import (
	"sync"
	"testing"

	"github.com/nerrad567/ecolink-core/internal/event"
	"github.com/nerrad567/ecolink-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/ecolink-core/internal/protocol"
)

type fakeBroker struct {
	mu       sync.Mutex
	handlers map[string]mqtt.MessageHandler
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{handlers: make(map[string]mqtt.MessageHandler)}
}

func (b *fakeBroker) Subscribe(topic string, handler mqtt.MessageHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = handler
	return nil
}

func (b *fakeBroker) Unsubscribe(topic string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, topic)
	return nil
}

type fakeBus struct {
	mu   sync.Mutex
	last map[event.Kind]event.Event
}

func newFakeBus() *fakeBus {
	return &fakeBus{last: make(map[event.Kind]event.Event)}
}

func (b *fakeBus) Notify(e event.Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last[e.Kind()] = e
	return true
}

func (b *fakeBus) RequestRefresh(event.Kind) {}

func (b *fakeBus) GetLastEvent(kind event.Kind) (event.Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.last[kind]
	return e, ok
}

func testDevice() protocol.DeviceInfo {
	return protocol.DeviceInfo{ID: "E0001234", Class: "yna5xi", Resource: "rGeX", DataType: protocol.DataTypeJSON}
}

func bindCorrelator(t *testing.T, hooks Hooks) (*Correlator, *fakeBroker, *fakeBus) {
	t.Helper()
	broker := newFakeBroker()
	bus := newFakeBus()
	c := NewCorrelator(broker, bus, testDevice(), nil, hooks)
	if err := c.Bind(); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if len(broker.handlers) != 3 {
		t.Fatalf("subscriptions = %d, want report, p2p request and p2p response", len(broker.handlers))
	}
	return c, broker, bus
}

func TestReportRoutedToBus(t *testing.T) {
	var gotFw string
	c, _, bus := bindCorrelator(t, Hooks{OnFirmwareVersion: func(v string) { gotFw = v }})

	topic := "iot/atr/onBattery/E0001234/yna5xi/rGeX/j"
	payload := []byte(`{"header":{"fwVer":"1.7.6"},"body":{"data":{"value":88,"isLow":0}}}`)
	if err := c.handleReport(topic, payload); err != nil {
		t.Fatalf("handleReport: %v", err)
	}

	if e, _ := bus.GetLastEvent(event.KindBattery); e != (event.BatteryEvent{Value: 88}) {
		t.Errorf("battery event = %v, want 88", e)
	}
	if gotFw != "1.7.6" {
		t.Errorf("firmware version = %q, want 1.7.6", gotFw)
	}
}

func TestUnknownReportIsIgnored(t *testing.T) {
	c, _, bus := bindCorrelator(t, Hooks{})

	topic := "iot/atr/onSomethingNew/E0001234/yna5xi/rGeX/j"
	if err := c.handleReport(topic, []byte(`{"body":{"data":{}}}`)); err != nil {
		t.Fatalf("handleReport: %v", err)
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	if len(bus.last) != 0 {
		t.Errorf("events notified for unknown report: %v", bus.last)
	}
}

func TestP2PRequestResponsePairing(t *testing.T) {
	c, _, bus := bindCorrelator(t, Hooks{})

	request := "iot/p2p/setVolume/app7/appclass/appres/E0001234/yna5xi/rGeX/q/42/j"
	if err := c.handleP2P(request, []byte(`{"body":{"data":{"volume":9}}}`)); err != nil {
		t.Fatalf("request: %v", err)
	}
	if c.PendingCount() != 1 {
		t.Fatalf("pending = %d, want 1", c.PendingCount())
	}

	// A response with a different id must not resolve the request.
	wrong := "iot/p2p/setVolume/E0001234/yna5xi/rGeX/app7/appclass/appres/p/43/j"
	if err := c.handleP2P(wrong, []byte(`{"body":{"code":0}}`)); err != nil {
		t.Fatalf("mismatched response: %v", err)
	}
	if _, ok := bus.GetLastEvent(event.KindVolume); ok {
		t.Fatal("mismatched response updated the cache")
	}
	if c.PendingCount() != 1 {
		t.Fatalf("pending = %d after mismatched response, want 1", c.PendingCount())
	}

	matching := "iot/p2p/setVolume/E0001234/yna5xi/rGeX/app7/appclass/appres/p/42/j"
	if err := c.handleP2P(matching, []byte(`{"body":{"code":0}}`)); err != nil {
		t.Fatalf("response: %v", err)
	}
	if e, _ := bus.GetLastEvent(event.KindVolume); e == nil || !e.Equal(event.VolumeEvent{Volume: 9}) {
		t.Errorf("volume event = %v, want VolumeEvent{9}", e)
	}
	if c.PendingCount() != 0 {
		t.Errorf("pending = %d after pairing, want 0", c.PendingCount())
	}
}

func TestUntrackedP2PCommandIsSkipped(t *testing.T) {
	c, _, _ := bindCorrelator(t, Hooks{})

	request := "iot/p2p/getBattery/app7/appclass/appres/E0001234/yna5xi/rGeX/q/77/j"
	if err := c.handleP2P(request, []byte(`{"body":{"data":{}}}`)); err != nil {
		t.Fatalf("request: %v", err)
	}
	if c.PendingCount() != 0 {
		t.Errorf("pending = %d, want queries untracked", c.PendingCount())
	}
}

func TestTrafficHookFires(t *testing.T) {
	var traffic int
	c, _, _ := bindCorrelator(t, Hooks{OnTraffic: func() { traffic++ }})

	c.handleReport("iot/atr/onBattery/E0001234/yna5xi/rGeX/j", []byte(`{"body":{"data":{"value":50}}}`))
	c.handleP2P("iot/p2p/setVolume/a/b/c/E0001234/yna5xi/rGeX/q/1/j", []byte(`{"body":{"data":{"volume":1}}}`))

	if traffic != 2 {
		t.Errorf("traffic hook fired %d times, want 2", traffic)
	}
}

func TestUnbindDropsSubscriptions(t *testing.T) {
	c, broker, _ := bindCorrelator(t, Hooks{})
	c.Unbind()
	broker.mu.Lock()
	defer broker.mu.Unlock()
	if len(broker.handlers) != 0 {
		t.Errorf("handlers remaining after unbind: %d", len(broker.handlers))
	}
}
