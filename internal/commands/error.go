package commands

import (
	"github.com/nerrad567/ecolink-core/internal/event"
	"github.com/nerrad567/ecolink-core/internal/protocol"
)

// errorDescriptions maps device error codes to human-readable text.
// Codes missing from the table still surface, just without a description.
var errorDescriptions = map[int]string{
	0:   "NoError: Robot is operational",
	3:   "RequestOAuthError: Request oauth error",
	7:   "LogBatteryError: Log battery error",
	101: "BatteryLow: Low battery",
	102: "HostHang: Robot is off the floor",
	103: "WheelAbnormal: Driving wheel abnormal",
	104: "DownSensorAbnormal: Down sensor abnormal",
	105: "Stuck: Robot is stuck",
	106: "SideBrushExhausted: Side brushes have expired",
	107: "DustCaseHeapExhausted: Filter has expired",
	110: "NoDustBox: Dust bin not installed",
	111: "BumpAbnormal: Bump abnormal",
	112: "LDSMalfunction: Laser sensor malfunction",
	114: "DustBinFull: Dust bin full",
	116: "RelocateFail: Relocation failed",
	117: "SlopeStartFail: Cannot start on a slope",
	201: "AirFilterUninstall: Air filter not installed",
	404: "Recipient unavailable",
	500: "Request Timeout",
	601: "WaterTankEmpty: Water tank is empty",
	602: "WaterTankNotInstalled: Water tank not installed",
}

// GetError queries the most recent device error.
type GetError struct {
	jsonCommand
}

// NewGetError creates an error query.
func NewGetError() GetError {
	return GetError{jsonCommand{name: "getError"}}
}

func (c GetError) HandleResponse(bus protocol.EventBus, resp any) protocol.CommandResult {
	return handleBody(bus, resp, parseError)
}

func parseError(bus protocol.EventBus, data map[string]any) protocol.CommandResult {
	codes, ok := data["code"].([]any)
	if !ok {
		return protocol.ResultAnalyse()
	}

	// The device reports a code list; the last entry is the current one.
	code := 0
	if len(codes) > 0 {
		c, ok := asInt(codes[len(codes)-1])
		if !ok {
			return protocol.ResultAnalyse()
		}
		code = c
	}

	if code != 0 {
		bus.Notify(event.StateEvent{State: event.StateError})
	}
	bus.Notify(event.ErrorEvent{Code: code, Description: errorDescriptions[code]})
	return protocol.ResultSuccess()
}
