// Package logging builds the slog loggers used across fsald and the CLI.
//
// It ships a console handler that renders "TIMESTAMP LEVEL component: msg
// key=value" lines, a JSON handler for machine consumption, shared attribute
// helpers with standardized field keys, and a size-based rotating file writer
// honoring the logging.max_size_mib and logging.backups settings.
package logging
