package commands

import (
	"github.com/nerrad567/ecolink-core/internal/event"
	"github.com/nerrad567/ecolink-core/internal/protocol"
)

// enableSetting binds the wire names of one on/off setting to its event.
type enableSetting struct {
	getName string
	setName string
	wrap    func(enabled bool) event.Event
}

var enableSettings = map[event.Kind]enableSetting{
	event.KindAdvancedMode: {
		getName: "getAdvancedMode",
		setName: "setAdvancedMode",
		wrap: func(on bool) event.Event {
			return event.AdvancedModeEvent{EnableEvent: event.EnableEvent{Enabled: on}}
		},
	},
	event.KindContinuousCleaning: {
		getName: "getBreakPoint",
		setName: "setBreakPoint",
		wrap: func(on bool) event.Event {
			return event.ContinuousCleaningEvent{EnableEvent: event.EnableEvent{Enabled: on}}
		},
	},
	event.KindCarpetAutoFanBoost: {
		// The misspelled wire name is what devices actually answer to.
		getName: "getCarpertPressure",
		setName: "setCarpertPressure",
		wrap: func(on bool) event.Event {
			return event.CarpetAutoFanBoostEvent{EnableEvent: event.EnableEvent{Enabled: on}}
		},
	},
	event.KindCleanPreference: {
		getName: "getCleanPreference",
		setName: "setCleanPreference",
		wrap: func(on bool) event.Event {
			return event.CleanPreferenceEvent{EnableEvent: event.EnableEvent{Enabled: on}}
		},
	},
	event.KindMultimapState: {
		getName: "getMultiMapState",
		setName: "setMultiMapState",
		wrap: func(on bool) event.Event {
			return event.MultimapStateEvent{EnableEvent: event.EnableEvent{Enabled: on}}
		},
	},
	event.KindTrueDetect: {
		getName: "getTrueDetect",
		setName: "setTrueDetect",
		wrap: func(on bool) event.Event {
			return event.TrueDetectEvent{EnableEvent: event.EnableEvent{Enabled: on}}
		},
	},
}

// GetEnable queries one on/off setting.
type GetEnable struct {
	jsonCommand
	setting enableSetting
}

// NewGetEnable creates a query for the on/off setting behind kind.
// It returns false when the kind is not an on/off setting.
func NewGetEnable(kind event.Kind) (GetEnable, bool) {
	setting, ok := enableSettings[kind]
	if !ok {
		return GetEnable{}, false
	}
	return GetEnable{
		jsonCommand: jsonCommand{name: setting.getName},
		setting:     setting,
	}, true
}

func (c GetEnable) HandleResponse(bus protocol.EventBus, resp any) protocol.CommandResult {
	return handleBody(bus, resp, func(bus protocol.EventBus, data map[string]any) protocol.CommandResult {
		enabled, ok := asBool(data["enable"])
		if !ok {
			return protocol.ResultAnalyse()
		}
		bus.Notify(c.setting.wrap(enabled))
		return protocol.ResultSuccess()
	})
}

// NewSetEnable creates a write for the on/off setting behind kind.
// It returns false when the kind is not an on/off setting.
func NewSetEnable(kind event.Kind, enabled bool) (SetCommand, bool) {
	setting, ok := enableSettings[kind]
	if !ok {
		return SetCommand{}, false
	}
	return SetCommand{
		jsonCommand: jsonCommand{
			name: setting.setName,
			args: map[string]any{"enable": boolArg(enabled)},
		},
		apply: func(bus protocol.EventBus, args map[string]any) {
			if on, ok := asBool(args["enable"]); ok {
				bus.Notify(setting.wrap(on))
			}
		},
	}, true
}
