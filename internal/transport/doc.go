// Package transport connects the broker message streams to the event bus.
//
// The vendor broker carries two streams per device: unsolicited reports
// (iot/atr) and request/response exchanges between controllers and the
// device (iot/p2p). Reports are decoded through the push registry.
// For p2p traffic the correlator plays the observer: it remembers
// requests other controllers send, keyed by request id with a short TTL,
// and when the device answers it replays the confirmed change into the
// event cache. A response whose request was never seen, or expired, is
// dropped quietly.
package transport
