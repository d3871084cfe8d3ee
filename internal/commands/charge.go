package commands

import (
	"github.com/nerrad567/ecolink-core/internal/event"
	"github.com/nerrad567/ecolink-core/internal/protocol"
)

// Device result codes of the charge action.
const (
	chargeCodeAlreadyDocked = 30007
)

// Charge sends the device back to its charging dock.
type Charge struct {
	jsonCommand
}

// NewCharge creates a return-to-dock action.
func NewCharge() Charge {
	return Charge{jsonCommand{name: "charge", args: map[string]any{"act": "go"}}}
}

func (c Charge) HandleResponse(bus protocol.EventBus, resp any) protocol.CommandResult {
	code, ok := executeCode(resp)
	if !ok {
		return protocol.ResultAnalyse()
	}
	switch code {
	case 0:
		bus.Notify(event.StateEvent{State: event.StateReturning})
		return protocol.ResultSuccess()
	case chargeCodeAlreadyDocked:
		// The device refuses the action while sitting on the dock.
		bus.Notify(event.StateEvent{State: event.StateDocked})
		return protocol.ResultSuccess()
	default:
		return protocol.ResultFailed()
	}
}
