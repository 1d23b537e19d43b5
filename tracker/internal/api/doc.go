// Package api implements the tracker's HTTP REST API.
//
// New(deps) returns an http.Handler that serves:
//
//	GET  /api/v1/health     liveness and whether the engine is running
//	GET  /api/v1/status     run ID, sample counters, fetch state, alerts
//	GET  /api/v1/photos     stored photo results, newest first (?limit=N)
//	POST /api/v1/locations  one {"lon","lat","timestamp"} sample for the http source
//	GET  /api/v1/alerts     firing and recently resolved alerts
//	GET  /api/v1/history    journal entries (?run=ID&limit=N)
//	GET  /api/v1/runs       journal runs
//
// All endpoints respond with Content-Type: application/json and return 405
// for unsupported methods.
package api
