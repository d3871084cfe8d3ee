// Package telemetry mirrors device events into InfluxDB as time series.
//
// The sink subscribes to the numeric event kinds (battery, stats, life
// span, signal strength) and converts each delivery into a point on the
// non-blocking write API. It is an optional observer: when disabled or
// unreachable the rest of the engine runs unaffected.
package telemetry
