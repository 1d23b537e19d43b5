package types

import (
	"fmt"
	"time"
)

// LocationSample is one position reported by a location source.
type LocationSample struct {
	Longitude float64   `json:"lon"`
	Latitude  float64   `json:"lat"`
	Timestamp time.Time `json:"timestamp"`
}

// AreaQuery is the rectangular search area derived from a LocationSample.
type AreaQuery struct {
	MinLon float64 `json:"min_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLon float64 `json:"max_lon"`
	MaxLat float64 `json:"max_lat"`
}

// Key returns a stable string form of the query, suitable as a cache key.
func (q AreaQuery) Key() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", q.MinLon, q.MinLat, q.MaxLon, q.MaxLat)
}

// PhotoCandidate is one entry of a photo-search result batch.
type PhotoCandidate struct {
	URL string `json:"url"`
}

// PhotoResult is a candidate that was selected and stored.
// InsertedOrder is its zero-based position in the store, oldest first.
type PhotoResult struct {
	URL           string    `json:"url"`
	InsertedOrder int       `json:"inserted_order"`
	FoundAt       time.Time `json:"found_at"`
}
