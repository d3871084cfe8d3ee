package commands

import (
	"strings"

	"github.com/nerrad567/ecolink-core/internal/event"
	"github.com/nerrad567/ecolink-core/internal/protocol"
)

// tracePointCount is the page size of the movement trace query.
const tracePointCount = 200

// roomSubtypeNames maps the numeric room subtype to its display name,
// used when the device reports a room without a custom name.
var roomSubtypeNames = map[int]string{
	0:  "Default",
	1:  "Living Room",
	2:  "Dining Room",
	3:  "Bedroom",
	4:  "Study",
	5:  "Kitchen",
	6:  "Bathroom",
	7:  "Laundry",
	8:  "Lounge",
	9:  "Storeroom",
	10: "Kids room",
	11: "Sunroom",
	12: "Corridor",
	13: "Balcony",
	14: "Gym",
}

// GetCachedMapInfo queries the list of stored maps and resolves the
// active one. On success it fans out into map set queries for every set
// type, which in turn resolve their subsets.
type GetCachedMapInfo struct {
	jsonCommand
}

// NewGetCachedMapInfo creates a cached map info query.
func NewGetCachedMapInfo() GetCachedMapInfo {
	return GetCachedMapInfo{jsonCommand{name: "getCachedMapInfo"}}
}

func (c GetCachedMapInfo) HandleResponse(bus protocol.EventBus, resp any) protocol.CommandResult {
	return handleBody(bus, resp, parseCachedMapInfo)
}

func parseCachedMapInfo(bus protocol.EventBus, data map[string]any) protocol.CommandResult {
	info, ok := data["info"].([]any)
	if !ok {
		return protocol.ResultAnalyse()
	}

	for _, item := range info {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		using, _ := asBool(entry["using"])
		if !using {
			continue
		}
		mid, ok := asString(entry["mid"])
		if !ok {
			continue
		}
		name, _ := asString(entry["name"])
		bus.Notify(event.CachedMapInfoEvent{Name: name, Active: true})

		next := make([]protocol.Command, 0, len(event.MapSetTypes()))
		for _, t := range event.MapSetTypes() {
			next = append(next, NewGetMapSet(mid, t))
		}
		return protocol.CommandResult{
			State: protocol.HandlingSuccess,
			Args:  map[string]any{"mid": mid},
			Next:  next,
		}
	}
	return protocol.ResultAnalyse()
}

// GetMapSet queries the subset ids of one map set.
type GetMapSet struct {
	jsonCommand
}

// NewGetMapSet creates a map set query for one map and set type.
func NewGetMapSet(mid string, setType event.MapSetType) GetMapSet {
	return GetMapSet{jsonCommand{
		name: "getMapSet",
		args: map[string]any{"mid": mid, "type": string(setType)},
	}}
}

func (c GetMapSet) HandleResponse(bus protocol.EventBus, resp any) protocol.CommandResult {
	return handleBody(bus, resp, parseMapSet)
}

func parseMapSet(bus protocol.EventBus, data map[string]any) protocol.CommandResult {
	setType, ok := asString(data["type"])
	if !ok || !event.ValidMapSetType(setType) {
		return protocol.ResultAnalyse()
	}
	mid, _ := asString(data["mid"])
	msid, _ := asString(data["msid"])
	rawSubsets, ok := data["subsets"].([]any)
	if !ok {
		return protocol.ResultAnalyse()
	}

	subsets := make([]int, 0, len(rawSubsets))
	next := make([]protocol.Command, 0, len(rawSubsets))
	for _, item := range rawSubsets {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		mssid, ok := asInt(entry["mssid"])
		if !ok {
			continue
		}
		subsets = append(subsets, mssid)
		next = append(next, NewGetMapSubSet(mid, msid, event.MapSetType(setType), mssid))
	}

	bus.Notify(event.MapSetEvent{Type: event.MapSetType(setType), Subsets: subsets})
	return protocol.CommandResult{State: protocol.HandlingSuccess, Next: next}
}

// GetMapSubSet queries one map subset: a room, virtual wall or no-mop
// zone with its coordinates.
type GetMapSubSet struct {
	jsonCommand
}

// NewGetMapSubSet creates a map subset query.
func NewGetMapSubSet(mid, msid string, setType event.MapSetType, mssid int) GetMapSubSet {
	return GetMapSubSet{jsonCommand{
		name: "getMapSubSet",
		args: map[string]any{
			"mid":   mid,
			"msid":  msid,
			"type":  string(setType),
			"mssid": mssid,
		},
	}}
}

func (c GetMapSubSet) HandleResponse(bus protocol.EventBus, resp any) protocol.CommandResult {
	return handleBody(bus, resp, parseMapSubSet)
}

func parseMapSubSet(bus protocol.EventBus, data map[string]any) protocol.CommandResult {
	setType, ok := asString(data["type"])
	if !ok || !event.ValidMapSetType(setType) {
		return protocol.ResultAnalyse()
	}
	mssid, ok := asInt(data["mssid"])
	if !ok {
		return protocol.ResultAnalyse()
	}
	value, _ := asString(data["value"])

	name, _ := asString(data["name"])
	if name == "" && event.MapSetType(setType) == event.MapSetRooms {
		if subtype, ok := asInt(data["subtype"]); ok {
			name = roomSubtypeNames[subtype]
		}
	}

	bus.Notify(event.MapSubsetEvent{
		ID:          mssid,
		Type:        event.MapSetType(setType),
		Coordinates: value,
		Name:        name,
	})
	return protocol.ResultSuccess()
}

// GetMapTrace queries one page of the device movement trace and re-issues
// itself until the full trace arrived.
type GetMapTrace struct {
	jsonCommand
}

// NewGetMapTrace creates a trace query starting at the given offset.
func NewGetMapTrace(start int) GetMapTrace {
	return GetMapTrace{jsonCommand{
		name: "getMapTrace",
		args: map[string]any{"pointCount": tracePointCount, "traceStart": start},
	}}
}

func (c GetMapTrace) HandleResponse(bus protocol.EventBus, resp any) protocol.CommandResult {
	return handleBody(bus, resp, parseMapTrace)
}

func parseMapTrace(bus protocol.EventBus, data map[string]any) protocol.CommandResult {
	total, ok := asInt(data["totalCount"])
	if !ok {
		return protocol.ResultAnalyse()
	}
	start, ok := asInt(data["traceStart"])
	if !ok {
		return protocol.ResultAnalyse()
	}
	value, _ := asString(data["traceValue"])

	bus.Notify(event.MapTraceEvent{Start: start, Total: total, Data: value})

	result := protocol.CommandResult{State: protocol.HandlingSuccess}
	if start+tracePointCount < total {
		result.Next = []protocol.Command{NewGetMapTrace(start + tracePointCount)}
	}
	return result
}

// GetMajorMap queries the checksum list of the map pieces. Pieces whose
// checksum changed are fetched individually through GetMinorMap.
type GetMajorMap struct {
	jsonCommand
}

// NewGetMajorMap creates a major map query.
func NewGetMajorMap() GetMajorMap {
	return GetMajorMap{jsonCommand{name: "getMajorMap"}}
}

func (c GetMajorMap) HandleResponse(bus protocol.EventBus, resp any) protocol.CommandResult {
	return handleBody(bus, resp, func(bus protocol.EventBus, data map[string]any) protocol.CommandResult {
		return parseMajorMap(bus, data, true)
	})
}

func parseMajorMap(bus protocol.EventBus, data map[string]any, requested bool) protocol.CommandResult {
	mid, ok := asString(data["mid"])
	if !ok {
		return protocol.ResultAnalyse()
	}
	value, ok := asString(data["value"])
	if !ok {
		return protocol.ResultAnalyse()
	}
	bus.Notify(event.MajorMapEvent{
		MapID:     mid,
		Values:    strings.Split(value, ","),
		Requested: requested,
	})
	return protocol.ResultSuccess()
}

// GetMinorMap fetches one compressed map piece.
type GetMinorMap struct {
	jsonCommand
}

// NewGetMinorMap creates a minor map query for one piece.
func NewGetMinorMap(mid string, pieceIndex int) GetMinorMap {
	return GetMinorMap{jsonCommand{
		name: "getMinorMap",
		args: map[string]any{"mid": mid, "type": "ol", "pieceIndex": pieceIndex},
	}}
}

func (c GetMinorMap) HandleResponse(bus protocol.EventBus, resp any) protocol.CommandResult {
	return handleBody(bus, resp, parseMinorMap)
}

func parseMinorMap(bus protocol.EventBus, data map[string]any) protocol.CommandResult {
	index, ok := asInt(data["pieceIndex"])
	if !ok {
		return protocol.ResultAnalyse()
	}
	value, ok := asString(data["pieceValue"])
	if !ok {
		return protocol.ResultAnalyse()
	}
	bus.Notify(event.MinorMapEvent{Index: index, Value: value})
	return protocol.ResultSuccess()
}
