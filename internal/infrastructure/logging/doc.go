// Package logging provides structured logging for Ecolink Core.
//
// It wraps the standard library's log/slog with configuration-driven
// setup (level, format, destination) and default attributes that are
// attached to every record (service name, version).
//
// # Usage
//
//	log := logging.New(cfg.Logging, version)
//	log.Info("session started", "device", deviceID)
//
//	// Component-scoped logger
//	busLog := log.With("component", "event_bus")
//
// Packages that need logging accept a narrow Logger interface and fall
// back to a no-op implementation, so a logger never has to be nil-checked
// at call sites.
package logging
