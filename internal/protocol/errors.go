package protocol

import "errors"

var (
	// ErrNoResponse is returned when the portal replied with an empty or
	// non-JSON body.
	ErrNoResponse = errors.New("no response from portal")

	// ErrPayloadEncoding is returned when a command payload could not be
	// serialized.
	ErrPayloadEncoding = errors.New("payload encoding failed")
)
