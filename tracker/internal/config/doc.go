// Package config loads and watches the tracker configuration file (config.yaml).
//
// Top-level types:
//   - Config{Tracker, Location, PhotoSearch, Journal, Alerts}: full tree parsed from YAML
//   - TrackerConfig: http_port, log level/format, API key auth of the HTTP surface
//   - LocationConfig: source (http|replay|mqtt), min_interval, min_displacement_m,
//     replay file settings and MQTT broker settings
//   - PhotoSearchConfig: endpoint, margin_deg, retry policy (max_attempts,
//     attempt_timeout, backoff_*), rate_limit, cache_ttl, static params, auth
//   - JournalConfig: optional SQLite history
//   - AlertsConfig: failure alert rules and webhook targets
//
// Secrets are never stored in the file. Fields ending in _env name the
// environment variable that holds the value; Key(), Token(), Password() and
// URL() resolve them.
//
// Load(path) reads the file, applies defaults (10s / 100 m sample policy,
// 0.001 degree margin, 4 attempts of 30s, 1s initial backoff x3 up to 30s,
// 10m response cache), then validates required fields and enums.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config.
package config
