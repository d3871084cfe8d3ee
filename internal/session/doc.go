// Package session wires the engine together for one physical device.
//
// A session owns the event bus, bounds outbound command execution with a
// small permit gate, watches the message streams for proof of life and
// probes the device when they go quiet. It also installs the cross-event
// side effects that keep related state consistent, such as refreshing the
// clean log once the device reports itself docked.
package session
