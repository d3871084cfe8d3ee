package commands

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strings"

	"github.com/nerrad567/ecolink-core/internal/event"
	"github.com/nerrad567/ecolink-core/internal/protocol"
)

// xmlCommand is the shared base of commands for the older device
// generation that speaks XML payloads. The payload is a single <ctl/>
// element whose attributes carry the arguments.
type xmlCommand struct {
	name string
	args map[string]string
}

func (c xmlCommand) Name() string                { return c.name }
func (c xmlCommand) DataType() protocol.DataType { return protocol.DataTypeXML }
func (c xmlCommand) TargetsDevice() bool         { return true }

func (c xmlCommand) Payload() (any, error) {
	if len(c.args) == 0 {
		return "<ctl/>", nil
	}
	keys := make([]string, 0, len(c.args))
	for k := range c.args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("<ctl")
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%q", k, c.args[k])
	}
	sb.WriteString("/>")
	return sb.String(), nil
}

// xmlResponse is the attribute bag devices answer with.
type xmlResponse struct {
	XMLName xml.Name `xml:"ctl"`
	Ret     string   `xml:"ret,attr"`
	Power   string   `xml:"power,attr"`
	Errs    string   `xml:"errs,attr"`
	Speed   string   `xml:"speed,attr"`
	Charge  *struct {
		Type string `xml:"type,attr"`
	} `xml:"charge"`
}

// decodeXMLResponse parses a <ctl/> response string and checks its ret
// attribute. A missing ret attribute counts as accepted; the older
// firmwares omit it on some answers.
func decodeXMLResponse(resp any) (*xmlResponse, bool) {
	s, ok := resp.(string)
	if !ok {
		return nil, false
	}
	var doc xmlResponse
	if err := xml.Unmarshal([]byte(s), &doc); err != nil {
		return nil, false
	}
	if doc.Ret != "" && doc.Ret != "ok" {
		return nil, false
	}
	return &doc, true
}

// XMLGetBattery queries the battery level of an XML generation device.
type XMLGetBattery struct {
	xmlCommand
}

// NewXMLGetBattery creates a battery query for XML devices.
func NewXMLGetBattery() XMLGetBattery {
	return XMLGetBattery{xmlCommand{name: "GetBatteryInfo"}}
}

func (c XMLGetBattery) HandleResponse(bus protocol.EventBus, resp any) protocol.CommandResult {
	doc, ok := decodeXMLResponse(resp)
	if !ok {
		return protocol.ResultAnalyse()
	}
	power, ok := asInt(doc.Power)
	if !ok {
		return protocol.ResultAnalyse()
	}
	bus.Notify(event.BatteryEvent{Value: power})
	return protocol.ResultSuccess()
}

// XMLGetChargeState queries the charging state of an XML generation device.
type XMLGetChargeState struct {
	xmlCommand
}

// NewXMLGetChargeState creates a charge state query for XML devices.
func NewXMLGetChargeState() XMLGetChargeState {
	return XMLGetChargeState{xmlCommand{name: "GetChargeState"}}
}

func (c XMLGetChargeState) HandleResponse(bus protocol.EventBus, resp any) protocol.CommandResult {
	doc, ok := decodeXMLResponse(resp)
	if !ok || doc.Charge == nil {
		return protocol.ResultAnalyse()
	}
	switch doc.Charge.Type {
	case "SlotCharging", "WireCharging":
		bus.Notify(event.StateEvent{State: event.StateDocked})
	case "Going":
		bus.Notify(event.StateEvent{State: event.StateReturning})
	case "Idle":
		// Not charging; the operating state comes from the clean report.
	default:
		return protocol.ResultAnalyse()
	}
	return protocol.ResultSuccess()
}

// XMLGetError queries the current error list of an XML generation device.
type XMLGetError struct {
	xmlCommand
}

// NewXMLGetError creates an error query for XML devices.
func NewXMLGetError() XMLGetError {
	return XMLGetError{xmlCommand{name: "GetError"}}
}

func (c XMLGetError) HandleResponse(bus protocol.EventBus, resp any) protocol.CommandResult {
	doc, ok := decodeXMLResponse(resp)
	if !ok {
		return protocol.ResultAnalyse()
	}
	code := 0
	if doc.Errs != "" {
		codes := parseIntList(doc.Errs)
		if len(codes) == 0 {
			return protocol.ResultAnalyse()
		}
		code = codes[len(codes)-1]
	}
	if code != 0 {
		bus.Notify(event.StateEvent{State: event.StateError})
	}
	bus.Notify(event.ErrorEvent{Code: code, Description: errorDescriptions[code]})
	return protocol.ResultSuccess()
}

// XMLGetFanSpeed queries the suction power of an XML generation device.
type XMLGetFanSpeed struct {
	xmlCommand
}

// NewXMLGetFanSpeed creates a fan speed query for XML devices.
func NewXMLGetFanSpeed() XMLGetFanSpeed {
	return XMLGetFanSpeed{xmlCommand{name: "GetCleanSpeed"}}
}

func (c XMLGetFanSpeed) HandleResponse(bus protocol.EventBus, resp any) protocol.CommandResult {
	doc, ok := decodeXMLResponse(resp)
	if !ok {
		return protocol.ResultAnalyse()
	}
	switch doc.Speed {
	case "standard":
		bus.Notify(event.FanSpeedEvent{Speed: event.FanSpeedNormal})
	case "strong":
		bus.Notify(event.FanSpeedEvent{Speed: event.FanSpeedMax})
	default:
		return protocol.ResultAnalyse()
	}
	return protocol.ResultSuccess()
}

// XMLPlaySound lets an XML generation device play its locate chime.
type XMLPlaySound struct {
	xmlCommand
}

// NewXMLPlaySound creates a locate action for XML devices.
func NewXMLPlaySound() XMLPlaySound {
	return XMLPlaySound{xmlCommand{name: "PlaySound", args: map[string]string{"sid": "30"}}}
}

func (c XMLPlaySound) HandleResponse(_ protocol.EventBus, resp any) protocol.CommandResult {
	if _, ok := decodeXMLResponse(resp); !ok {
		return protocol.ResultFailed()
	}
	return protocol.ResultSuccess()
}
