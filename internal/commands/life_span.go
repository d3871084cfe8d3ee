package commands

import (
	"github.com/nerrad567/ecolink-core/internal/event"
	"github.com/nerrad567/ecolink-core/internal/protocol"
)

// GetLifeSpan queries the remaining life of consumable components.
type GetLifeSpan struct {
	jsonCommand
}

// NewGetLifeSpan creates a consumables query for the given components.
func NewGetLifeSpan(components ...event.LifeSpanComponent) GetLifeSpan {
	if len(components) == 0 {
		components = []event.LifeSpanComponent{
			event.ComponentBrush,
			event.ComponentFilter,
			event.ComponentSideBrush,
		}
	}
	types := make([]any, 0, len(components))
	for _, c := range components {
		types = append(types, string(c))
	}
	// The wire payload for this query is a bare array of component names.
	return GetLifeSpan{jsonCommand{name: "getLifeSpan", args: map[string]any{"type": types}}}
}

// Payload returns the component list; this query is one of the few whose
// payload is an array rather than an object.
func (c GetLifeSpan) Payload() (any, error) {
	return c.args["type"], nil
}

func (c GetLifeSpan) HandleResponse(bus protocol.EventBus, resp any) protocol.CommandResult {
	return handleBodyList(bus, resp, parseLifeSpanList)
}

func parseLifeSpanList(bus protocol.EventBus, data []any) protocol.CommandResult {
	notified := false
	for _, item := range data {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		component, ok := asString(entry["type"])
		if !ok {
			continue
		}
		left, okLeft := asFloat(entry["left"])
		total, okTotal := asFloat(entry["total"])
		if !okLeft || !okTotal || total <= 0 {
			continue
		}
		bus.Notify(event.LifeSpanEvent{
			Component: event.LifeSpanComponent(component),
			Percent:   left / total * 100,
			Remaining: int(left),
		})
		notified = true
	}
	if !notified {
		return protocol.ResultAnalyse()
	}
	return protocol.ResultSuccess()
}

// ResetLifeSpan resets the wear counter of one component after replacing it.
type ResetLifeSpan struct {
	jsonCommand
}

// NewResetLifeSpan creates a wear counter reset.
func NewResetLifeSpan(component event.LifeSpanComponent) ResetLifeSpan {
	return ResetLifeSpan{jsonCommand{
		name: "resetLifeSpan",
		args: map[string]any{"type": string(component)},
	}}
}

func (c ResetLifeSpan) HandleResponse(bus protocol.EventBus, resp any) protocol.CommandResult {
	result := handleExecute(resp)
	if result.State == protocol.HandlingSuccess {
		bus.RequestRefresh(event.KindLifeSpan)
	}
	return result
}
