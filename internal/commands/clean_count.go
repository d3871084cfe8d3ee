package commands

import (
	"github.com/nerrad567/ecolink-core/internal/event"
	"github.com/nerrad567/ecolink-core/internal/protocol"
)

// GetCleanCount queries the configured number of cleaning passes.
type GetCleanCount struct {
	jsonCommand
}

// NewGetCleanCount creates a clean count query.
func NewGetCleanCount() GetCleanCount {
	return GetCleanCount{jsonCommand{name: "getCleanCount"}}
}

func (c GetCleanCount) HandleResponse(bus protocol.EventBus, resp any) protocol.CommandResult {
	return handleBody(bus, resp, parseCleanCount)
}

func parseCleanCount(bus protocol.EventBus, data map[string]any) protocol.CommandResult {
	count, ok := asInt(data["count"])
	if !ok {
		return protocol.ResultAnalyse()
	}
	bus.Notify(event.CleanCountEvent{Count: count})
	return protocol.ResultSuccess()
}

// NewSetCleanCount creates a clean count write.
func NewSetCleanCount(count int) SetCommand {
	return SetCommand{
		jsonCommand: jsonCommand{name: "setCleanCount", args: map[string]any{"count": count}},
		apply: func(bus protocol.EventBus, args map[string]any) {
			if count, ok := asInt(args["count"]); ok {
				bus.Notify(event.CleanCountEvent{Count: count})
			}
		},
	}
}
