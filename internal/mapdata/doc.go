// Package mapdata derives composed map facts from the raw map streams.
//
// The device never sends "the rooms"; it sends a set of subset ids and
// resolves them one by one. This package owns that bookkeeping and
// publishes the finished room list as a single event, reset whenever the
// active map switches or the vendor app edits the map.
package mapdata
