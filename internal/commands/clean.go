package commands

import (
	"github.com/nerrad567/ecolink-core/internal/event"
	"github.com/nerrad567/ecolink-core/internal/protocol"
)

// CleanAction is one of the verbs understood by the clean command.
type CleanAction string

// Clean actions.
const (
	CleanStart  CleanAction = "start"
	CleanPause  CleanAction = "pause"
	CleanResume CleanAction = "resume"
	CleanStop   CleanAction = "stop"
)

// CleanMode selects what a clean run covers.
type CleanMode string

// Clean modes.
const (
	CleanModeAuto       CleanMode = "auto"
	CleanModeSpotArea   CleanMode = "spotArea"
	CleanModeCustomArea CleanMode = "customArea"
)

// Clean starts, pauses, resumes or stops a cleaning run.
//
// The device rejects a start while paused and a resume while not paused,
// so the action is swapped against the cached operating state just before
// the command is sent.
type Clean struct {
	jsonCommand
}

// NewClean creates a whole-home clean action.
func NewClean(action CleanAction) *Clean {
	return &Clean{jsonCommand{
		name: "clean",
		args: map[string]any{"act": string(action), "type": string(CleanModeAuto)},
	}}
}

// NewCleanArea creates a targeted clean action.
//
// Parameters:
//   - mode: CleanModeSpotArea with room ids or CleanModeCustomArea with
//     map coordinates as content
//   - content: Comma-separated room ids or rectangle coordinates
//   - cleanings: Number of passes over the area
func NewCleanArea(mode CleanMode, content string, cleanings int) *Clean {
	return &Clean{jsonCommand{
		name: "clean",
		args: map[string]any{
			"act":     string(CleanStart),
			"type":    string(mode),
			"content": content,
			"count":   cleanings,
		},
	}}
}

// Prepare swaps start and resume against the cached operating state.
func (c *Clean) Prepare(bus protocol.EventBus) {
	last, ok := bus.GetLastEvent(event.KindState)
	if !ok {
		return
	}
	state, ok := last.(event.StateEvent)
	if !ok {
		return
	}

	paused := state.State == event.StatePaused
	switch act, _ := c.args["act"].(string); {
	case paused && act == string(CleanStart):
		c.args["act"] = string(CleanResume)
	case !paused && act == string(CleanResume):
		c.args["act"] = string(CleanStart)
	}
}

func (c *Clean) HandleResponse(_ protocol.EventBus, resp any) protocol.CommandResult {
	return handleExecute(resp)
}
