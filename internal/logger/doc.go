// Package logger provides structured logging functionality for the vikget project.
//
// Features:
//   - Multiple log levels (TRACE, DEBUG, INFO, WARN, ERROR)
//   - Component-based filtering
//   - Multiple output formats (text, JSON, color)
//   - Thread-safe operations
//
// Usage:
//
//	// Get a component logger
//	log := logger.WithComponent(logger.ComponentAPI)
//
//	// Log messages with different levels
//	log.Info("Downloading video streams JSON", map[string]interface{}{
//		"video_id": "44699v",
//	})
//
//	// Configure global logger
//	config := logger.DefaultConfig()
//	config.Level = logger.DEBUG
//	config.Format = logger.FormatJSON
//	logger.SetGlobalLogger(logger.New(config))
//
// Components:
//   - ComponentApp: Extraction facade logs
//   - ComponentAPI: Signed API session logs
//   - ComponentClient: HTTP client logs
//   - ComponentStreams: Format resolution logs
//   - ComponentManifest: HLS/DASH manifest extraction logs
//   - ComponentChannel: Channel pagination logs
package logger
