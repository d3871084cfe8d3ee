// Package event implements the typed event bus at the heart of Ecolink Core.
//
// Device state reaches the application as a stream of immutable Event
// snapshots, one variant per aspect (battery, operating state, map data,
// settings). The Bus fans these snapshots out to subscribers and layers
// the behaviours the rest of the system relies on:
//
//   - Warm cache: the latest accepted snapshot per kind is kept and
//     replayed to every new subscriber, so consumers never start cold.
//   - Duplicate suppression: an event equal to the cached snapshot of its
//     kind is dropped before reaching subscribers.
//   - Debouncing: kinds with a configured window coalesce bursts into the
//     final value (used for the high-frequency map piece stream).
//   - Corrections: a device on the charger misreports itself as idle
//     after waking; the bus keeps the docked state instead.
//   - Refresh orchestration: subscribing to a kind triggers a re-query of
//     the backing device state, with at most one refresh in flight per
//     kind. When the device recovers from an outage every subscribed kind
//     is refreshed.
//
// The bus knows nothing about wire formats or transports; it drives
// refreshes through injected callbacks so the protocol layer stays a
// consumer of this package, not a dependency.
package event
