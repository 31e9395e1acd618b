// Package application wires the ProvStore emulator: storage, handlers,
// router and HTTP server. It keeps cmd/interop focused on CLI parsing.
package application
