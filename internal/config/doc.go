// Package config resolves a converter's configuration section from, in order
// of precedence, an injected harness configuration, a YAML file named by an
// environment variable, or a default YAML file. It also overlays an API key
// taken from the environment onto the resolved authorization value.
package config
