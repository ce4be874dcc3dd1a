// Package logging builds the zap loggers used across devshell.
//
// Production logs are JSON, development logs are colored console output.
// Both go to stderr so the interactive CLI keeps stdout for the terminal.
//
//	logger := logging.NewDefault()
//	log := logger.Session(string(sessionID))
//	log.Info("sandbox booted", zap.String("workdir", dir))
package logging
