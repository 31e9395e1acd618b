// Package logging builds the zap loggers used by the interop runner and the
// ProvStore emulator.
package logging
