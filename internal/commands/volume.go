package commands

import (
	"github.com/nerrad567/ecolink-core/internal/event"
	"github.com/nerrad567/ecolink-core/internal/protocol"
)

// GetVolume queries the speaker volume.
type GetVolume struct {
	jsonCommand
}

// NewGetVolume creates a volume query.
func NewGetVolume() GetVolume {
	return GetVolume{jsonCommand{name: "getVolume"}}
}

func (c GetVolume) HandleResponse(bus protocol.EventBus, resp any) protocol.CommandResult {
	return handleBody(bus, resp, parseVolume)
}

func parseVolume(bus protocol.EventBus, data map[string]any) protocol.CommandResult {
	volume, ok := asInt(data["volume"])
	if !ok {
		return protocol.ResultAnalyse()
	}
	bus.Notify(event.VolumeEvent{Volume: volume, Maximum: optionalInt(data["total"])})
	return protocol.ResultSuccess()
}

// NewSetVolume creates a volume write.
func NewSetVolume(volume int) SetCommand {
	return SetCommand{
		jsonCommand: jsonCommand{name: "setVolume", args: map[string]any{"volume": volume}},
		apply: func(bus protocol.EventBus, args map[string]any) {
			if volume, ok := asInt(args["volume"]); ok {
				bus.Notify(event.VolumeEvent{Volume: volume})
			}
		},
	}
}
