// Package metrics defines the Prometheus collectors of the tracker daemon and
// serves them on /metrics. The status command scrapes the same endpoint.
package metrics
