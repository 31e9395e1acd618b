// Package formats lists the PROV serialisations understood by converters and
// the ProvStore API, along with their HTTP content types.
package formats

import (
	"path/filepath"
	"strings"
)

// Format identifiers, which double as file extensions.
const (
	PROVN = "provn"
	TTL   = "ttl"
	TRIG  = "trig"
	PROVX = "provx"
	JSON  = "json"
)

var all = []string{PROVN, TTL, TRIG, PROVX, JSON}

var contentTypes = map[string]string{
	PROVN: "text/provenance-notation",
	TTL:   "text/turtle",
	TRIG:  "application/trig",
	PROVX: "application/xml",
	JSON:  "application/json",
}

// All returns the known formats in canonical order.
func All() []string {
	out := make([]string, len(all))
	copy(out, all)
	return out
}

// Known reports whether format is a recognised PROV serialisation.
func Known(format string) bool {
	_, ok := contentTypes[format]
	return ok
}

// ContentType returns the MIME type used on the wire for format.
func ContentType(format string) (string, bool) {
	ct, ok := contentTypes[format]
	return ct, ok
}

// FromPath derives the format from a file extension, e.g. "doc.ttl" -> "ttl".
func FromPath(path string) string {
	return strings.TrimPrefix(filepath.Ext(path), ".")
}

// Contains reports whether list holds format.
func Contains(list []string, format string) bool {
	for _, f := range list {
		if f == format {
			return true
		}
	}
	return false
}
