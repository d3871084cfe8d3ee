// Package commands contains the typed device commands and the push
// message registry.
//
// Queries (get*) extract state from responses and publish it as events;
// actions (clean, charge, playSound) only report acceptance; settings
// writes (set*) additionally replay the written value into the cache of
// their paired query once the device confirms. Unsolicited broker pushes
// reuse the same parse functions through the message registry, so a value
// is interpreted identically no matter which way it arrived.
//
// Most commands speak the JSON payload dialect; the xml variants cover
// the older device generation, which answers with <ctl/> attribute bags.
package commands
