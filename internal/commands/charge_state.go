package commands

import (
	"github.com/nerrad567/ecolink-core/internal/event"
	"github.com/nerrad567/ecolink-core/internal/protocol"
)

// GetChargeState queries whether the device is currently charging.
type GetChargeState struct {
	jsonCommand
}

// NewGetChargeState creates a charge state query.
func NewGetChargeState() GetChargeState {
	return GetChargeState{jsonCommand{name: "getChargeState"}}
}

func (c GetChargeState) HandleResponse(bus protocol.EventBus, resp any) protocol.CommandResult {
	body, ok := responseBody(resp)
	if !ok {
		return protocol.ResultAnalyse()
	}
	code, ok := asInt(body["code"])
	if !ok {
		return protocol.ResultAnalyse()
	}
	if code == 0 {
		data, ok := body["data"].(map[string]any)
		if !ok {
			return protocol.ResultAnalyse()
		}
		return parseChargeState(bus, data)
	}

	// Non-zero codes still describe a state.
	switch code {
	case chargeCodeAlreadyDocked:
		bus.Notify(event.StateEvent{State: event.StateDocked})
		return protocol.ResultSuccess()
	case 3, 5:
		// 3: request mismatch while busy, 5: busy with another task.
		// Both surface as an error state rather than a charge answer.
		bus.Notify(event.StateEvent{State: event.StateError})
		return protocol.ResultSuccess()
	default:
		return protocol.ResultFailed()
	}
}

func parseChargeState(bus protocol.EventBus, data map[string]any) protocol.CommandResult {
	charging, ok := asBool(data["isCharging"])
	if !ok {
		return protocol.ResultAnalyse()
	}
	if charging {
		bus.Notify(event.StateEvent{State: event.StateDocked})
	}
	return protocol.ResultSuccess()
}
