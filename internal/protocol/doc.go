// Package protocol defines the command contract and the portal execution
// engine.
//
// A Command describes one request to a device: its wire name, payload
// encoding and a response handler that turns the reply into events. The
// Executor wraps commands in the portal envelope, posts them through an
// authenticated client and classifies the outcome into a HandlingState.
//
// Responses can spawn follow-up commands (chained map queries, trace
// pagination); the Executor runs those before reporting completion.
// Whether the physical device was reached is a separate signal from
// handling success: commands answered by the portal alone never count as
// device contact, which the session's availability monitor relies on.
package protocol
