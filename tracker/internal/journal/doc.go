// Package journal keeps an optional SQLite history of every photo result
// stored by the tracker, keyed by run. It is write-behind: the engine
// enqueues entries on a bounded drop-oldest buffer and a Writer goroutine
// persists them, so a slow disk never delays delivery to observers. The
// in-memory store stays the source of truth for replay.
//
// The schema lives in sql/ as numbered up/down migrations embedded into the
// binary and applied on Open.
package journal
