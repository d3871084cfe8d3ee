// Package capability maps device models to what they support.
//
// Device classes differ in payload dialect and feature set; the
// capability resolver hides that behind two questions: does this device
// support a given event kind, and which commands refresh it. Known
// models carry a curated manifest, unknown ones fall back to the full
// kind set of their dialect.
package capability
