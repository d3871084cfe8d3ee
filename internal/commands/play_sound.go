package commands

import (
	"github.com/nerrad567/ecolink-core/internal/protocol"
)

// PlaySound lets the device play its locate chime.
type PlaySound struct {
	jsonCommand
}

// NewPlaySound creates a locate action.
func NewPlaySound() PlaySound {
	return PlaySound{jsonCommand{name: "playSound", args: map[string]any{"count": 1, "sid": 30}}}
}

func (c PlaySound) HandleResponse(_ protocol.EventBus, resp any) protocol.CommandResult {
	return handleExecute(resp)
}

// SetRelocationState forces the device to relocate itself on the map.
type SetRelocationState struct {
	jsonCommand
}

// NewSetRelocationState creates a manual relocation action.
func NewSetRelocationState() SetRelocationState {
	return SetRelocationState{jsonCommand{
		name: "setRelocationState",
		args: map[string]any{"mode": "manu"},
	}}
}

func (c SetRelocationState) HandleResponse(_ protocol.EventBus, resp any) protocol.CommandResult {
	return handleExecute(resp)
}
