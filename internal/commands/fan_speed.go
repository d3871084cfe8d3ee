package commands

import (
	"github.com/nerrad567/ecolink-core/internal/event"
	"github.com/nerrad567/ecolink-core/internal/protocol"
)

// GetFanSpeed queries the configured suction power.
type GetFanSpeed struct {
	jsonCommand
}

// NewGetFanSpeed creates a fan speed query.
func NewGetFanSpeed() GetFanSpeed {
	return GetFanSpeed{jsonCommand{name: "getSpeed"}}
}

func (c GetFanSpeed) HandleResponse(bus protocol.EventBus, resp any) protocol.CommandResult {
	return handleBody(bus, resp, parseFanSpeed)
}

func parseFanSpeed(bus protocol.EventBus, data map[string]any) protocol.CommandResult {
	speed, ok := asInt(data["speed"])
	if !ok {
		return protocol.ResultAnalyse()
	}
	bus.Notify(event.FanSpeedEvent{Speed: event.FanSpeedLevel(speed)})
	return protocol.ResultSuccess()
}

// NewSetFanSpeed creates a fan speed write.
func NewSetFanSpeed(speed event.FanSpeedLevel) SetCommand {
	return SetCommand{
		jsonCommand: jsonCommand{name: "setSpeed", args: map[string]any{"speed": int(speed)}},
		apply: func(bus protocol.EventBus, args map[string]any) {
			if speed, ok := asInt(args["speed"]); ok {
				bus.Notify(event.FanSpeedEvent{Speed: event.FanSpeedLevel(speed)})
			}
		},
	}
}
