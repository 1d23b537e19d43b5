// Package registry is the single registration point between the fetch engine
// and whoever is watching it.
//
// At most one observer is attached at a time. Attaching replays every result
// stored so far and replaces the previous observer without error; results
// published while nothing is attached are kept in the store and dropped from
// live delivery.
package registry
