// Package logging configures the process-wide structured logger.
//
// quaestor logs through log/slog everywhere; this package translates the
// logging section of the configuration into a slog handler and installs it
// as the default logger. Components attach themselves with
// slog.Default().With("component", ...).
package logging
