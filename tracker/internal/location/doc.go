// Package location provides the sources of location samples (HTTP ingest,
// NDJSON track replay and OwnTracks over MQTT) and the Filter enforcing the
// minimum interval and displacement between accepted samples.
package location
