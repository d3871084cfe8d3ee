package commands

import (
	"strings"

	"github.com/nerrad567/ecolink-core/internal/event"
	"github.com/nerrad567/ecolink-core/internal/protocol"
)

// GetPos queries the device and charger positions.
type GetPos struct {
	jsonCommand
}

// NewGetPos creates a position query.
func NewGetPos() GetPos {
	return GetPos{jsonCommand{
		name: "getPos",
		args: map[string]any{"id": []any{string(event.PositionCharger), string(event.PositionDevice)}},
	}}
}

// Payload returns the position id list; the wire payload is an array.
func (c GetPos) Payload() (any, error) {
	return c.args["id"], nil
}

func (c GetPos) HandleResponse(bus protocol.EventBus, resp any) protocol.CommandResult {
	return handleBody(bus, resp, parsePositions)
}

func parsePositions(bus protocol.EventBus, data map[string]any) protocol.CommandResult {
	var positions []event.Position

	for _, t := range []event.PositionType{event.PositionDevice, event.PositionCharger} {
		entry, ok := data[string(t)].(map[string]any)
		if !ok {
			continue
		}
		if p, ok := parsePosition(t, entry); ok {
			positions = append(positions, p)
		}
	}

	if len(positions) == 0 {
		return protocol.ResultAnalyse()
	}
	bus.Notify(event.PositionsEvent{Positions: positions})
	return protocol.ResultSuccess()
}

func parsePosition(t event.PositionType, entry map[string]any) (event.Position, bool) {
	// Some firmwares pack coordinates into a "x,y,a" string instead of
	// discrete fields.
	if packed, ok := asString(entry["p"]); ok {
		parts := strings.Split(packed, ",")
		if len(parts) >= 2 {
			x, okX := asInt(parts[0])
			y, okY := asInt(parts[1])
			a := 0
			if len(parts) > 2 {
				a, _ = asInt(parts[2])
			}
			if okX && okY {
				return event.Position{Type: t, X: x, Y: y, A: a}, true
			}
		}
		return event.Position{}, false
	}

	x, okX := asInt(entry["x"])
	y, okY := asInt(entry["y"])
	if !okX || !okY {
		return event.Position{}, false
	}
	a, _ := asInt(entry["a"])
	return event.Position{Type: t, X: x, Y: y, A: a}, true
}
