package commands

import (
	"github.com/nerrad567/ecolink-core/internal/event"
	"github.com/nerrad567/ecolink-core/internal/protocol"
)

// CustomCommand sends a raw command the library has no typed wrapper for.
// The response is published verbatim as a CustomCommandEvent; nothing is
// interpreted beyond the portal envelope.
type CustomCommand struct {
	jsonCommand
}

// NewCustomCommand creates a raw command. args may be nil.
func NewCustomCommand(name string, args map[string]any) CustomCommand {
	return CustomCommand{jsonCommand{name: name, args: args}}
}

func (c CustomCommand) HandleResponse(bus protocol.EventBus, resp any) protocol.CommandResult {
	m, ok := resp.(map[string]any)
	if !ok {
		return protocol.ResultAnalyse()
	}
	bus.Notify(event.CustomCommandEvent{Name: c.name, Response: m})
	return protocol.ResultSuccess()
}
