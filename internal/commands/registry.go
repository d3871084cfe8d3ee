package commands

import (
	"encoding/json"
	"time"

	"github.com/nerrad567/ecolink-core/internal/event"
	"github.com/nerrad567/ecolink-core/internal/protocol"
)

// MessageHandler digests one broker push payload.
type MessageHandler func(bus protocol.EventBus, payload []byte) protocol.HandlingState

// messageHandlers maps push names to their payload handlers. Pushes share
// the parse functions of the matching queries wherever the data shape is
// the same.
var messageHandlers = map[string]MessageHandler{
	"onBattery":       dataMessage(parseBattery),
	"onChargeState":   dataMessage(parseChargeState),
	"onCleanInfo":     dataMessage(parseCleanInfo),
	"onCleanInfo_V2":  dataMessage(parseCleanInfo),
	"onError":         dataMessage(parseError),
	"onStats":         dataMessage(parseStats),
	"reportStats":     dataMessage(parseReportStats),
	"onSpeed":         dataMessage(parseFanSpeed),
	"onWaterInfo":     dataMessage(parseWaterInfo),
	"onPos":           dataMessage(parsePositions),
	"onNetInfo":       dataMessage(parseNetInfo),
	"onMinorMap":      dataMessage(parseMinorMap),
	"onMapTrace":      dataMessage(parseMapTrace),
	"onMajorMap":      dataMessage(parseMajorMapPush),
	"onMapSetV2":      dataMessage(parseMapSetChange),
	"onCachedMapInfo": dataMessage(parseCachedMapInfo),
	"onLifeSpan":      listMessage(parseLifeSpanList),
}

// MessageHandlerFor resolves the handler for one push name.
func MessageHandlerFor(name string) (MessageHandler, bool) {
	h, ok := messageHandlers[name]
	return h, ok
}

// dataMessage adapts a data object parser into a push payload handler.
func dataMessage(h dataHandler) MessageHandler {
	return func(bus protocol.EventBus, payload []byte) protocol.HandlingState {
		var doc map[string]any
		if err := json.Unmarshal(payload, &doc); err != nil {
			return protocol.HandlingAnalyse
		}
		return handleBody(bus, doc, h).State
	}
}

// listMessage adapts a data array parser into a push payload handler.
func listMessage(h func(bus protocol.EventBus, data []any) protocol.CommandResult) MessageHandler {
	return func(bus protocol.EventBus, payload []byte) protocol.HandlingState {
		var doc map[string]any
		if err := json.Unmarshal(payload, &doc); err != nil {
			return protocol.HandlingAnalyse
		}
		return handleBodyList(bus, doc, h).State
	}
}

// parseMajorMapPush is parseMajorMap for unsolicited pushes.
func parseMajorMapPush(bus protocol.EventBus, data map[string]any) protocol.CommandResult {
	return parseMajorMap(bus, data, false)
}

// parseMapSetChange marks the composed map as changed. The push itself
// carries the changed subset ids, but re-querying through the map chain
// is simpler and covers renames the push does not describe.
func parseMapSetChange(bus protocol.EventBus, _ map[string]any) protocol.CommandResult {
	bus.Notify(event.MapChangedEvent{When: time.Now().Unix()})
	return protocol.ResultSuccess()
}

// P2PHandler processes the broker-side response to a request this client
// observed earlier on the request topic.
type P2PHandler interface {
	HandleP2PResponse(bus protocol.EventBus, response map[string]any) protocol.HandlingState
}

// valueSetAppliers maps value-carrying set command names to the cache
// update they perform once confirmed.
var valueSetAppliers = map[string]func(bus protocol.EventBus, args map[string]any){
	"setSpeed": func(bus protocol.EventBus, args map[string]any) {
		if speed, ok := asInt(args["speed"]); ok {
			bus.Notify(event.FanSpeedEvent{Speed: event.FanSpeedLevel(speed)})
		}
	},
	"setWaterInfo": func(bus protocol.EventBus, args map[string]any) {
		if amount, ok := asInt(args["amount"]); ok {
			bus.Notify(event.WaterInfoEvent{Amount: event.WaterAmount(amount)})
		}
	},
	"setVolume": func(bus protocol.EventBus, args map[string]any) {
		if volume, ok := asInt(args["volume"]); ok {
			bus.Notify(event.VolumeEvent{Volume: volume})
		}
	},
	"setCleanCount": func(bus protocol.EventBus, args map[string]any) {
		if count, ok := asInt(args["count"]); ok {
			bus.Notify(event.CleanCountEvent{Count: count})
		}
	},
}

// NewP2PCommand reconstructs a tracked command from an observed broker
// request so its eventual response can update the event cache.
//
// Only settings writes are tracked; for everything else the response adds
// nothing the push stream does not already deliver.
func NewP2PCommand(name string, args map[string]any) (P2PHandler, bool) {
	if apply, ok := valueSetAppliers[name]; ok {
		return SetCommand{
			jsonCommand: jsonCommand{name: name, args: args},
			apply:       apply,
		}, true
	}
	for _, setting := range enableSettings {
		if setting.setName == name {
			wrap := setting.wrap
			return SetCommand{
				jsonCommand: jsonCommand{name: name, args: args},
				apply: func(bus protocol.EventBus, args map[string]any) {
					if on, ok := asBool(args["enable"]); ok {
						bus.Notify(wrap(on))
					}
				},
			}, true
		}
	}
	return nil, false
}
