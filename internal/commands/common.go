package commands

import (
	"strconv"
	"strings"

	"github.com/nerrad567/ecolink-core/internal/protocol"
)

// jsonCommand is the shared base of all JSON device commands. It carries
// the wire name and payload arguments; concrete commands embed it and add
// their response handling.
type jsonCommand struct {
	name string
	args map[string]any
}

func (c jsonCommand) Name() string                { return c.name }
func (c jsonCommand) DataType() protocol.DataType { return protocol.DataTypeJSON }
func (c jsonCommand) TargetsDevice() bool         { return true }

func (c jsonCommand) Payload() (any, error) {
	if c.args == nil {
		return map[string]any{}, nil
	}
	return c.args, nil
}

// dataHandler digests the data object of one response or message body.
type dataHandler func(bus protocol.EventBus, data map[string]any) protocol.CommandResult

// handleBody unwraps the {header, body:{code, data}} document shared by
// portal responses and broker pushes and dispatches the data object.
//
// A non-zero body code means the device rejected the query; an absent or
// malformed data object means the shape is unknown and needs analysis.
func handleBody(bus protocol.EventBus, resp any, h dataHandler) protocol.CommandResult {
	body, ok := responseBody(resp)
	if !ok {
		return protocol.ResultAnalyse()
	}
	// Broker pushes omit the code field; only an explicit non-zero code
	// is a rejection.
	if raw, present := body["code"]; present {
		if code, ok := asInt(raw); !ok || code != 0 {
			return protocol.ResultFailed()
		}
	}
	data, ok := body["data"].(map[string]any)
	if !ok {
		return protocol.ResultAnalyse()
	}
	return h(bus, data)
}

// handleBodyList is handleBody for responses whose data is an array.
func handleBodyList(bus protocol.EventBus, resp any, h func(bus protocol.EventBus, data []any) protocol.CommandResult) protocol.CommandResult {
	body, ok := responseBody(resp)
	if !ok {
		return protocol.ResultAnalyse()
	}
	if raw, present := body["code"]; present {
		if code, ok := asInt(raw); !ok || code != 0 {
			return protocol.ResultFailed()
		}
	}
	data, ok := body["data"].([]any)
	if !ok {
		return protocol.ResultAnalyse()
	}
	return h(bus, data)
}

// handleExecute digests the body of an action command. Only the result
// code matters; zero means the device accepted the action.
func handleExecute(resp any) protocol.CommandResult {
	body, ok := responseBody(resp)
	if !ok {
		return protocol.ResultAnalyse()
	}
	code, ok := asInt(body["code"])
	if !ok {
		return protocol.ResultAnalyse()
	}
	if code == 0 {
		return protocol.ResultSuccess()
	}
	return protocol.ResultFailed()
}

// responseBody extracts the body object from a response document.
func responseBody(resp any) (map[string]any, bool) {
	m, ok := resp.(map[string]any)
	if !ok {
		return nil, false
	}
	body, ok := m["body"].(map[string]any)
	return body, ok
}

// executeCode returns the result code of an action response body.
func executeCode(resp any) (int, bool) {
	body, ok := responseBody(resp)
	if !ok {
		return 0, false
	}
	return asInt(body["code"])
}

// asInt converts the loosely typed numbers found in device payloads.
// Devices interchange JSON numbers and numeric strings freely.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

// asFloat converts loosely typed numbers to float64.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// asString converts string-ish payload values.
func asString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	default:
		return "", false
	}
}

// asBool converts the 0/1 flags used by device payloads.
func asBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	default:
		if i, ok := asInt(v); ok {
			return i != 0, true
		}
		return false, false
	}
}

// boolArg encodes a boolean as the 0/1 integer the wire expects.
func boolArg(v bool) int {
	if v {
		return 1
	}
	return 0
}

// parseIntList parses a comma-separated list of integers, skipping
// malformed entries.
func parseIntList(s string) []int {
	var out []int
	for _, part := range strings.Split(s, ",") {
		if i, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
			out = append(out, i)
		}
	}
	return out
}

// optionalInt extracts a pointer for fields devices omit or null out.
func optionalInt(v any) *int {
	if i, ok := asInt(v); ok {
		return &i
	}
	return nil
}
