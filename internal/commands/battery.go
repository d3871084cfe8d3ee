package commands

import (
	"github.com/nerrad567/ecolink-core/internal/event"
	"github.com/nerrad567/ecolink-core/internal/protocol"
)

// GetBattery queries the battery charge percentage.
type GetBattery struct {
	jsonCommand
}

// NewGetBattery creates a battery query.
func NewGetBattery() GetBattery {
	return GetBattery{jsonCommand{name: "getBattery"}}
}

func (c GetBattery) HandleResponse(bus protocol.EventBus, resp any) protocol.CommandResult {
	return handleBody(bus, resp, parseBattery)
}

func parseBattery(bus protocol.EventBus, data map[string]any) protocol.CommandResult {
	value, ok := asInt(data["value"])
	if !ok {
		return protocol.ResultAnalyse()
	}
	bus.Notify(event.BatteryEvent{Value: value})
	return protocol.ResultSuccess()
}
