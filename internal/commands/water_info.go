package commands

import (
	"github.com/nerrad567/ecolink-core/internal/event"
	"github.com/nerrad567/ecolink-core/internal/protocol"
)

// GetWaterInfo queries the mopping water configuration.
type GetWaterInfo struct {
	jsonCommand
}

// NewGetWaterInfo creates a water info query.
func NewGetWaterInfo() GetWaterInfo {
	return GetWaterInfo{jsonCommand{name: "getWaterInfo"}}
}

func (c GetWaterInfo) HandleResponse(bus protocol.EventBus, resp any) protocol.CommandResult {
	return handleBody(bus, resp, parseWaterInfo)
}

func parseWaterInfo(bus protocol.EventBus, data map[string]any) protocol.CommandResult {
	amount, ok := asInt(data["amount"])
	if !ok {
		return protocol.ResultAnalyse()
	}

	var mopAttached *bool
	if attached, ok := asBool(data["enable"]); ok {
		mopAttached = &attached
	}

	bus.Notify(event.WaterInfoEvent{Amount: event.WaterAmount(amount), MopAttached: mopAttached})
	return protocol.ResultSuccess()
}

// NewSetWaterInfo creates a water amount write. The mop attachment state
// is sensor-driven and cannot be written.
func NewSetWaterInfo(amount event.WaterAmount) SetCommand {
	return SetCommand{
		jsonCommand: jsonCommand{name: "setWaterInfo", args: map[string]any{"amount": int(amount)}},
		apply: func(bus protocol.EventBus, args map[string]any) {
			if amount, ok := asInt(args["amount"]); ok {
				bus.Notify(event.WaterInfoEvent{Amount: event.WaterAmount(amount)})
			}
		},
	}
}
