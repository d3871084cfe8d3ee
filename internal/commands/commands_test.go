package commands

import (
	"testing"

	"github.com/nerrad567/ecolink-core/internal/event"
	"github.com/nerrad567/ecolink-core/internal/protocol"
)

type fakeBus struct {
	notified  []event.Event
	refreshed []event.Kind
	last      map[event.Kind]event.Event
}

func newFakeBus() *fakeBus {
	return &fakeBus{last: make(map[event.Kind]event.Event)}
}

func (b *fakeBus) Notify(e event.Event) bool {
	b.notified = append(b.notified, e)
	b.last[e.Kind()] = e
	return true
}

func (b *fakeBus) RequestRefresh(kind event.Kind) {
	b.refreshed = append(b.refreshed, kind)
}

func (b *fakeBus) GetLastEvent(kind event.Kind) (event.Event, bool) {
	e, ok := b.last[kind]
	return e, ok
}

func body(data any) map[string]any {
	return map[string]any{
		"header": map[string]any{"fwVer": "1.7.6"},
		"body":   map[string]any{"code": float64(0), "msg": "ok", "data": data},
	}
}

func TestGetBatteryHandleResponse(t *testing.T) {
	bus := newFakeBus()
	result := NewGetBattery().HandleResponse(bus, body(map[string]any{"value": float64(73), "isLow": float64(0)}))

	if result.State != protocol.HandlingSuccess {
		t.Fatalf("state = %v, want success", result.State)
	}
	if len(bus.notified) != 1 || bus.notified[0] != (event.BatteryEvent{Value: 73}) {
		t.Errorf("notified = %v, want BatteryEvent{73}", bus.notified)
	}
}

func TestUnknownShapeNeedsAnalysis(t *testing.T) {
	bus := newFakeBus()
	result := NewGetBattery().HandleResponse(bus, body(map[string]any{"charge": "full"}))

	if result.State != protocol.HandlingAnalyse {
		t.Errorf("state = %v, want analyse", result.State)
	}
	if len(bus.notified) != 0 {
		t.Errorf("unexpected events: %v", bus.notified)
	}
}

func TestRejectedBodyFails(t *testing.T) {
	resp := map[string]any{"body": map[string]any{"code": float64(-1), "msg": "fail"}}
	result := NewGetBattery().HandleResponse(newFakeBus(), resp)

	if result.State != protocol.HandlingFailed {
		t.Errorf("state = %v, want failed", result.State)
	}
}

func TestCleanPrepareSwapsStartAndResume(t *testing.T) {
	tests := []struct {
		name   string
		cached event.State
		action CleanAction
		want   string
	}{
		{"start while paused becomes resume", event.StatePaused, CleanStart, "resume"},
		{"resume while cleaning becomes start", event.StateCleaning, CleanResume, "start"},
		{"start while idle stays start", event.StateIdle, CleanStart, "start"},
		{"pause is never swapped", event.StatePaused, CleanPause, "pause"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := newFakeBus()
			bus.Notify(event.StateEvent{State: tt.cached})

			cmd := NewClean(tt.action)
			cmd.Prepare(bus)

			if act := cmd.args["act"]; act != tt.want {
				t.Errorf("act = %v, want %v", act, tt.want)
			}
		})
	}
}

func TestCleanPrepareWithoutCachedState(t *testing.T) {
	cmd := NewClean(CleanStart)
	cmd.Prepare(newFakeBus())
	if act := cmd.args["act"]; act != "start" {
		t.Errorf("act = %v, want start untouched", act)
	}
}

func TestChargeAlreadyDocked(t *testing.T) {
	bus := newFakeBus()
	resp := map[string]any{"body": map[string]any{"code": float64(30007), "msg": "fail"}}
	result := NewCharge().HandleResponse(bus, resp)

	if result.State != protocol.HandlingSuccess {
		t.Fatalf("state = %v, want success", result.State)
	}
	if len(bus.notified) != 1 || bus.notified[0] != (event.StateEvent{State: event.StateDocked}) {
		t.Errorf("notified = %v, want docked state", bus.notified)
	}
}

func TestMapTracePagination(t *testing.T) {
	bus := newFakeBus()
	result := NewGetMapTrace(0).HandleResponse(bus, body(map[string]any{
		"tid":        "101",
		"totalCount": float64(500),
		"traceStart": float64(0),
		"traceValue": "points",
	}))

	if result.State != protocol.HandlingSuccess {
		t.Fatalf("state = %v, want success", result.State)
	}
	if len(result.Next) != 1 {
		t.Fatalf("follow-ups = %d, want 1", len(result.Next))
	}
	next := result.Next[0].(GetMapTrace)
	if start := next.args["traceStart"]; start != 200 {
		t.Errorf("next traceStart = %v, want 200", start)
	}
}

func TestMapTracePaginationStopsWithinOnePage(t *testing.T) {
	bus := newFakeBus()
	result := NewGetMapTrace(0).HandleResponse(bus, body(map[string]any{
		"tid":        "101",
		"totalCount": float64(160),
		"traceStart": float64(0),
		"traceValue": "points",
	}))

	if len(result.Next) != 0 {
		t.Errorf("follow-ups = %d, want none when the trace fits one page", len(result.Next))
	}
}

func TestCachedMapInfoChainsMapSets(t *testing.T) {
	bus := newFakeBus()
	result := NewGetCachedMapInfo().HandleResponse(bus, body(map[string]any{
		"info": []any{
			map[string]any{"mid": "199390082", "using": float64(0), "name": "Old"},
			map[string]any{"mid": "199390099", "using": float64(1), "name": "Home"},
		},
	}))

	if result.State != protocol.HandlingSuccess {
		t.Fatalf("state = %v, want success", result.State)
	}
	if len(result.Next) != len(event.MapSetTypes()) {
		t.Fatalf("follow-ups = %d, want one per map set type", len(result.Next))
	}
	for _, next := range result.Next {
		if mid := next.(GetMapSet).args["mid"]; mid != "199390099" {
			t.Errorf("follow-up mid = %v, want the active map", mid)
		}
	}
	if e, _ := bus.GetLastEvent(event.KindCachedMapInfo); e != (event.CachedMapInfoEvent{Name: "Home", Active: true}) {
		t.Errorf("cached map event = %v", e)
	}
}

func TestMapSetChainsSubsets(t *testing.T) {
	bus := newFakeBus()
	result := NewGetMapSet("199390099", event.MapSetRooms).HandleResponse(bus, body(map[string]any{
		"type":    "ar",
		"mid":     "199390099",
		"msid":    "8",
		"subsets": []any{map[string]any{"mssid": "7"}, map[string]any{"mssid": "12"}},
	}))

	if len(result.Next) != 2 {
		t.Fatalf("follow-ups = %d, want 2", len(result.Next))
	}
	if e, _ := bus.GetLastEvent(event.KindMapSet); !e.Equal(event.MapSetEvent{Type: event.MapSetRooms, Subsets: []int{7, 12}}) {
		t.Errorf("map set event = %v", e)
	}
}

func TestMapSubsetRoomNameFallsBackToSubtype(t *testing.T) {
	bus := newFakeBus()
	result := NewGetMapSubSet("199390099", "8", event.MapSetRooms, 7).HandleResponse(bus, body(map[string]any{
		"type":    "ar",
		"mssid":   "7",
		"subtype": "5",
		"name":    "",
		"value":   "-1400,-1600;200,-1600",
	}))

	if result.State != protocol.HandlingSuccess {
		t.Fatalf("state = %v, want success", result.State)
	}
	want := event.MapSubsetEvent{ID: 7, Type: event.MapSetRooms, Coordinates: "-1400,-1600;200,-1600", Name: "Kitchen"}
	if e, _ := bus.GetLastEvent(event.KindMapSubset); e != want {
		t.Errorf("subset event = %v, want %v", e, want)
	}
}

func TestSetCommandUpdatesCacheOnSuccess(t *testing.T) {
	bus := newFakeBus()
	cmd := NewSetFanSpeed(event.FanSpeedMax)

	resp := map[string]any{"body": map[string]any{"code": float64(0), "msg": "ok"}}
	if result := cmd.HandleResponse(bus, resp); result.State != protocol.HandlingSuccess {
		t.Fatalf("state = %v, want success", result.State)
	}
	if e, _ := bus.GetLastEvent(event.KindFanSpeed); e != (event.FanSpeedEvent{Speed: event.FanSpeedMax}) {
		t.Errorf("cache = %v, want the written fan speed", e)
	}

	// A rejected write must leave the cache alone.
	bus2 := newFakeBus()
	resp["body"].(map[string]any)["code"] = float64(-1)
	cmd.HandleResponse(bus2, resp)
	if _, ok := bus2.GetLastEvent(event.KindFanSpeed); ok {
		t.Error("rejected write updated the cache")
	}
}

func TestCleanInfoStateMapping(t *testing.T) {
	tests := []struct {
		data map[string]any
		want event.State
	}{
		{map[string]any{"state": "clean", "cleanState": map[string]any{"motionState": "working"}}, event.StateCleaning},
		{map[string]any{"state": "clean", "cleanState": map[string]any{"motionState": "pause"}}, event.StatePaused},
		{map[string]any{"state": "clean", "cleanState": map[string]any{"motionState": "goCharging"}}, event.StateReturning},
		{map[string]any{"state": "goCharging"}, event.StateReturning},
		{map[string]any{"state": "idle"}, event.StateIdle},
	}

	for _, tt := range tests {
		bus := newFakeBus()
		if result := parseCleanInfo(bus, tt.data); result.State != protocol.HandlingSuccess {
			t.Fatalf("parseCleanInfo(%v) state = %v", tt.data, result.State)
		}
		if e, _ := bus.GetLastEvent(event.KindState); e != (event.StateEvent{State: tt.want}) {
			t.Errorf("parseCleanInfo(%v) = %v, want %v", tt.data, e, tt.want)
		}
	}
}

func TestErrorNotifiesErrorState(t *testing.T) {
	bus := newFakeBus()
	result := NewGetError().HandleResponse(bus, body(map[string]any{"code": []any{float64(105)}}))

	if result.State != protocol.HandlingSuccess {
		t.Fatalf("state = %v, want success", result.State)
	}
	if e, _ := bus.GetLastEvent(event.KindState); e != (event.StateEvent{State: event.StateError}) {
		t.Errorf("state event = %v, want error state", e)
	}
	want := event.ErrorEvent{Code: 105, Description: "Stuck: Robot is stuck"}
	if e, _ := bus.GetLastEvent(event.KindError); e != want {
		t.Errorf("error event = %v, want %v", e, want)
	}
}

func TestMessageRegistryRoutesPushes(t *testing.T) {
	handler, ok := MessageHandlerFor("onBattery")
	if !ok {
		t.Fatal("onBattery handler missing")
	}

	bus := newFakeBus()
	payload := []byte(`{"header":{"fwVer":"1.7.6"},"body":{"data":{"value":66,"isLow":0}}}`)
	if state := handler(bus, payload); state != protocol.HandlingSuccess {
		t.Fatalf("state = %v, want success", state)
	}
	if e, _ := bus.GetLastEvent(event.KindBattery); e != (event.BatteryEvent{Value: 66}) {
		t.Errorf("battery event = %v", e)
	}

	if _, ok := MessageHandlerFor("onSomethingUnknown"); ok {
		t.Error("unknown push name resolved to a handler")
	}
}

func TestP2PCommandAppliesSetArgs(t *testing.T) {
	cmd, ok := NewP2PCommand("setVolume", map[string]any{"volume": float64(7)})
	if !ok {
		t.Fatal("setVolume should be trackable")
	}

	bus := newFakeBus()
	resp := map[string]any{"body": map[string]any{"code": float64(0)}}
	if state := cmd.HandleP2PResponse(bus, resp); state != protocol.HandlingSuccess {
		t.Fatalf("state = %v, want success", state)
	}
	if e, _ := bus.GetLastEvent(event.KindVolume); !e.Equal(event.VolumeEvent{Volume: 7}) {
		t.Errorf("volume event = %v, want VolumeEvent{7}", e)
	}

	if _, ok := NewP2PCommand("getBattery", nil); ok {
		t.Error("queries must not be tracked as p2p commands")
	}
}

func TestXMLBatteryResponse(t *testing.T) {
	bus := newFakeBus()
	result := NewXMLGetBattery().HandleResponse(bus, "<ctl ret='ok' power='095'/>")

	if result.State != protocol.HandlingSuccess {
		t.Fatalf("state = %v, want success", result.State)
	}
	if e, _ := bus.GetLastEvent(event.KindBattery); e != (event.BatteryEvent{Value: 95}) {
		t.Errorf("battery event = %v, want 95", e)
	}
}

func TestXMLChargeState(t *testing.T) {
	bus := newFakeBus()
	result := NewXMLGetChargeState().HandleResponse(bus, "<ctl ret='ok'><charge type='SlotCharging'/></ctl>")

	if result.State != protocol.HandlingSuccess {
		t.Fatalf("state = %v, want success", result.State)
	}
	if e, _ := bus.GetLastEvent(event.KindState); e != (event.StateEvent{State: event.StateDocked}) {
		t.Errorf("state event = %v, want docked", e)
	}
}
