package protocol

import (
	"net/url"

	"github.com/nerrad567/ecolink-core/internal/event"
)

// DataType selects the payload encoding a device speaks.
type DataType string

// Payload encodings.
const (
	DataTypeJSON DataType = "j"
	DataTypeXML  DataType = "x"
)

// HandlingState classifies the outcome of processing one response or
// message payload.
type HandlingState int

// Handling outcomes.
const (
	// HandlingSuccess means the payload was understood and events were
	// notified as applicable.
	HandlingSuccess HandlingState = iota

	// HandlingFailed means the device or portal reported a failure.
	HandlingFailed

	// HandlingError means processing crashed; the payload was well within
	// reach but the handler misbehaved.
	HandlingError

	// HandlingAnalyse means the payload had an unknown shape and should
	// be captured for analysis.
	HandlingAnalyse

	// HandlingAnalyseLogged is HandlingAnalyse after the raw payload was
	// written to the debug log.
	HandlingAnalyseLogged
)

// String returns a short name for the handling state.
func (s HandlingState) String() string {
	switch s {
	case HandlingSuccess:
		return "success"
	case HandlingFailed:
		return "failed"
	case HandlingError:
		return "error"
	case HandlingAnalyse:
		return "analyse"
	case HandlingAnalyseLogged:
		return "analyse_logged"
	default:
		return "unknown"
	}
}

// CommandResult is the outcome of handling one command response.
type CommandResult struct {
	State HandlingState

	// Args carries values extracted from the response, consumed by
	// follow-up commands and by set/get cache updates.
	Args map[string]any

	// Next lists follow-up commands to execute when State is
	// HandlingSuccess. Used for chained queries such as resolving map
	// subsets after the map set arrived.
	Next []Command
}

// ResultSuccess returns a plain success result.
func ResultSuccess() CommandResult { return CommandResult{State: HandlingSuccess} }

// ResultFailed returns a plain failure result.
func ResultFailed() CommandResult { return CommandResult{State: HandlingFailed} }

// ResultAnalyse marks the response shape as unknown.
func ResultAnalyse() CommandResult { return CommandResult{State: HandlingAnalyse} }

// EventBus is the narrow view commands need of the event bus.
type EventBus interface {
	Notify(e event.Event) bool
	RequestRefresh(kind event.Kind)
	GetLastEvent(kind event.Kind) (event.Event, bool)
}

// Command is one request the client can send to a device through the
// cloud portal.
//
// Payload returns the encoding-specific payload arguments: a JSON-able
// value for DataTypeJSON or a serialized <ctl/> string for DataTypeXML.
// HandleResponse digests the portal response body and notifies events.
type Command interface {
	Name() string
	DataType() DataType
	Payload() (any, error)
	TargetsDevice() bool
	HandleResponse(bus EventBus, response any) CommandResult
}

// Preparer is implemented by commands that adjust their payload from
// cached state just before being sent, such as the clean command picking
// between start and resume.
type Preparer interface {
	Prepare(bus EventBus)
}

// RequestOverride is implemented by commands that bypass the default IoT
// device manager endpoint, such as the cleaning log query.
type RequestOverride interface {
	PortalPath() string
	PortalBody(device DeviceInfo) (map[string]any, url.Values)
}

// DeviceInfo identifies the target appliance on the portal and broker.
type DeviceInfo struct {
	ID       string
	Class    string
	Resource string
	DataType DataType
}
