package commands

import (
	"github.com/nerrad567/ecolink-core/internal/event"
	"github.com/nerrad567/ecolink-core/internal/protocol"
)

// GetNetInfo queries the device network details.
type GetNetInfo struct {
	jsonCommand
}

// NewGetNetInfo creates a network info query.
func NewGetNetInfo() GetNetInfo {
	return GetNetInfo{jsonCommand{name: "getNetInfo"}}
}

func (c GetNetInfo) HandleResponse(bus protocol.EventBus, resp any) protocol.CommandResult {
	return handleBody(bus, resp, parseNetInfo)
}

func parseNetInfo(bus protocol.EventBus, data map[string]any) protocol.CommandResult {
	ip, ok := asString(data["ip"])
	if !ok {
		return protocol.ResultAnalyse()
	}
	ssid, _ := asString(data["ssid"])
	mac, _ := asString(data["mac"])
	rssi, _ := asInt(data["rssi"])

	bus.Notify(event.NetworkInfoEvent{IP: ip, SSID: ssid, RSSI: rssi, MAC: mac})
	return protocol.ResultSuccess()
}
