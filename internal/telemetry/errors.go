package telemetry

import "errors"

// Sentinel errors for telemetry operations.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(err, telemetry.ErrDisabled) {
//	    // Run without the metric sink
//	}
var (
	// ErrDisabled indicates the telemetry sink is disabled in config.
	ErrDisabled = errors.New("telemetry: disabled in configuration")

	// ErrConnectionFailed indicates the initial connection attempt failed.
	ErrConnectionFailed = errors.New("telemetry: connection failed")

	// ErrNotConnected indicates the sink is not connected to InfluxDB.
	ErrNotConnected = errors.New("telemetry: not connected")
)
