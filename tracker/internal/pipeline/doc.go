// Package pipeline runs the location-triggered photo fetch.
//
// pipeline.go holds the single-flight Pipeline: each accepted sample becomes
// an area query and one fetch; a newer sample cancels the fetch in flight,
// and a completion that lost that race is discarded under the same lock
// that advanced the generation. Successful fetches are reduced to one
// candidate by the selector and published to the registry, which stores the
// result and pushes it to the attached observer.
//
// engine.go holds the Engine that owns a run: it reads the location source,
// applies the rate filter and guarantees that Stop cancels the outstanding
// fetch and waits for every goroutine.
package pipeline
