// Package storage holds the documents uploaded to the ProvStore emulator.
package storage
