// Package logging configures the process-wide log/slog logger.
//
// # Usage
//
//	logger, err := logging.Setup(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
// Setup installs the logger with slog.SetDefault, so packages keep
// deriving their loggers from slog.Default():
//
//	logger := slog.Default().With("component", "richhistory.service")
//
// # Redaction
//
// Attributes whose key names a credential (secret_access_key,
// access_key_id, password, token) are replaced with "***" before they are
// written, whatever the format.
package logging
