// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Every shell component takes a *Logger and derives a named child, so log
// lines carry the component ("navigation", "lifecycle", "reveal", ...).
// A nil *Logger is treated as a no-op logger.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	nav := logger.Named("navigation")
//	nav.Info("fragment swapped", zap.String("path", "/art"))
//	nav.Error("fragment fetch failed", zap.Error(err))
package logging
