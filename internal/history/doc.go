// Package history persists a rolling record of device events to SQLite.
//
// The store subscribes to a curated set of event kinds and writes each
// delivery as a JSON row. It exists for after-the-fact inspection
// (battery curves, error timelines, clean summaries) and is deliberately
// decoupled from live event delivery: a failed insert is logged and
// dropped, never surfaced to subscribers.
package history
