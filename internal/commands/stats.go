package commands

import (
	"github.com/nerrad567/ecolink-core/internal/event"
	"github.com/nerrad567/ecolink-core/internal/protocol"
)

// GetStats queries statistics of the current or last cleaning job.
type GetStats struct {
	jsonCommand
}

// NewGetStats creates a job statistics query.
func NewGetStats() GetStats {
	return GetStats{jsonCommand{name: "getStats"}}
}

func (c GetStats) HandleResponse(bus protocol.EventBus, resp any) protocol.CommandResult {
	return handleBody(bus, resp, parseStats)
}

func parseStats(bus protocol.EventBus, data map[string]any) protocol.CommandResult {
	statsType, _ := asString(data["type"])
	bus.Notify(event.StatsEvent{
		Area: optionalInt(data["area"]),
		Time: optionalInt(data["time"]),
		Type: statsType,
	})
	return protocol.ResultSuccess()
}

// GetTotalStats queries lifetime statistics.
type GetTotalStats struct {
	jsonCommand
}

// NewGetTotalStats creates a lifetime statistics query.
func NewGetTotalStats() GetTotalStats {
	return GetTotalStats{jsonCommand{name: "getTotalStats"}}
}

func (c GetTotalStats) HandleResponse(bus protocol.EventBus, resp any) protocol.CommandResult {
	return handleBody(bus, resp, parseTotalStats)
}

func parseTotalStats(bus protocol.EventBus, data map[string]any) protocol.CommandResult {
	area, okArea := asInt(data["area"])
	duration, okTime := asInt(data["time"])
	count, okCount := asInt(data["count"])
	if !okArea || !okTime || !okCount {
		return protocol.ResultAnalyse()
	}
	bus.Notify(event.TotalStatsEvent{Area: area, Time: duration, Cleanings: count})
	return protocol.ResultSuccess()
}

// parseReportStats digests the per-job statistics push sent while a
// cleaning job runs or finishes. There is no query counterpart.
func parseReportStats(bus protocol.EventBus, data map[string]any) protocol.CommandResult {
	statsType, _ := asString(data["type"])
	cid, _ := asString(data["cid"])

	status := event.CleanJobNoStatus
	if stop, ok := asInt(data["stop"]); ok {
		if stop == 0 {
			status = event.CleanJobCleaning
		} else if reason, ok := asInt(data["stopReason"]); ok {
			status = event.CleanJobStatus(reason)
		}
	}

	var content []int
	if raw, ok := asString(data["content"]); ok && raw != "" {
		content = parseIntList(raw)
	}

	bus.Notify(event.ReportStatsEvent{
		Area:       optionalInt(data["area"]),
		Time:       optionalInt(data["time"]),
		Type:       statsType,
		CleaningID: cid,
		Status:     status,
		Content:    content,
	})
	return protocol.ResultSuccess()
}
