// Package store keeps the in-memory list of photo results found during one
// tracker run. It is the single source of truth for replay to observers:
// results are appended in fetch-completion order, never change, and are
// never deleted while the engine lives. Snapshot returns newest first, the
// order observers display.
package store
