package commands

import (
	"net/url"

	"github.com/nerrad567/ecolink-core/internal/event"
	"github.com/nerrad567/ecolink-core/internal/protocol"
)

const pathLogAPI = "lg/log.do"

// GetCleanLogs queries the recent cleaning log.
//
// The log lives on the portal, not the device, so this command goes to
// the log endpoint and never counts as device contact.
type GetCleanLogs struct {
	jsonCommand
}

// NewGetCleanLogs creates a cleaning log query.
func NewGetCleanLogs() GetCleanLogs {
	return GetCleanLogs{jsonCommand{name: "GetCleanLogs"}}
}

func (c GetCleanLogs) TargetsDevice() bool { return false }

// PortalPath routes the query to the log endpoint.
func (c GetCleanLogs) PortalPath() string { return pathLogAPI }

// PortalBody builds the log endpoint request document.
func (c GetCleanLogs) PortalBody(device protocol.DeviceInfo) (map[string]any, url.Values) {
	body := map[string]any{
		"td":       c.name,
		"did":      device.ID,
		"resource": device.Resource,
	}
	return body, url.Values{"td": {c.name}}
}

func (c GetCleanLogs) HandleResponse(bus protocol.EventBus, resp any) protocol.CommandResult {
	m, ok := resp.(map[string]any)
	if !ok {
		return protocol.ResultAnalyse()
	}
	raw, ok := m["logs"].([]any)
	if !ok {
		return protocol.ResultAnalyse()
	}

	logs := make([]event.CleanLogEntry, 0, len(raw))
	for _, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		ts, ok := asInt(entry["ts"])
		if !ok {
			continue
		}
		imageURL, _ := asString(entry["imageUrl"])
		logType, _ := asString(entry["type"])
		area, _ := asInt(entry["area"])
		duration, _ := asInt(entry["last"])

		stopReason := event.CleanJobNoStatus
		if r, ok := asInt(entry["stopReason"]); ok {
			stopReason = event.CleanJobStatus(r)
		}

		logs = append(logs, event.CleanLogEntry{
			Timestamp:  int64(ts),
			ImageURL:   imageURL,
			Type:       logType,
			Area:       area,
			StopReason: stopReason,
			Duration:   duration,
		})
	}

	bus.Notify(event.CleanLogEvent{Logs: logs})
	return protocol.ResultSuccess()
}
