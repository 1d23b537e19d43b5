// Package logging builds the process slog.Logger from the tracker log config.
// JSON output uses the standard library handler; text output goes through
// charmbracelet/log. Both honour a shared slog.LevelVar so the level can be
// changed by config hot reload.
package logging
