// Package status is the client side of the tracker's HTTP surface, used by
// the status and photos CLI commands.
//
// Client.Status and Client.Photos read the JSON API. Client.Metrics scrapes
// the Prometheus exposition at /metrics and folds it into a Report. Render
// prints both for a terminal.
package status
