package commands

import (
	"github.com/nerrad567/ecolink-core/internal/event"
	"github.com/nerrad567/ecolink-core/internal/protocol"
)

// GetCleanInfo queries the current operating state.
type GetCleanInfo struct {
	jsonCommand
}

// NewGetCleanInfo creates an operating state query.
func NewGetCleanInfo() GetCleanInfo {
	return GetCleanInfo{jsonCommand{name: "getCleanInfo"}}
}

func (c GetCleanInfo) HandleResponse(bus protocol.EventBus, resp any) protocol.CommandResult {
	return handleBody(bus, resp, parseCleanInfo)
}

func parseCleanInfo(bus protocol.EventBus, data map[string]any) protocol.CommandResult {
	state, ok := asString(data["state"])
	if !ok {
		return protocol.ResultAnalyse()
	}

	var result event.State
	switch state {
	case "clean":
		result = event.StateCleaning
		if cleanState, ok := data["cleanState"].(map[string]any); ok {
			switch motion, _ := asString(cleanState["motionState"]); motion {
			case "pause":
				result = event.StatePaused
			case "goCharging":
				result = event.StateReturning
			}
		}
	case "goCharging":
		result = event.StateReturning
	case "idle":
		result = event.StateIdle
	default:
		return protocol.ResultAnalyse()
	}

	bus.Notify(event.StateEvent{State: result})
	return protocol.ResultSuccess()
}
