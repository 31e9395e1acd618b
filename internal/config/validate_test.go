package config

import (
	"errors"
	"testing"
)

func validConfig() Config {
	return Config{
		URL:           "https://provenance.ecs.soton.ac.uk/store/api/v0/documents/",
		Authorization: "ApiKey user:12345qwerty",
		InputFormats:  []string{"provn", "ttl"},
		OutputFormats: []string{"json"},
	}
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsInvalidConfig(t *testing.T) {
	testCases := map[string]func(*Config){
		"missing url":          func(c *Config) { c.URL = "" },
		"non http url":         func(c *Config) { c.URL = "ftp://example.com/docs/" },
		"url without host":     func(c *Config) { c.URL = "http:///docs/" },
		"missing auth":         func(c *Config) { c.Authorization = "" },
		"no input formats":     func(c *Config) { c.InputFormats = nil },
		"unknown input":        func(c *Config) { c.InputFormats = []string{"rdf"} },
		"unknown output":       func(c *Config) { c.OutputFormats = []string{"json", "xml"} },
		"empty output formats": func(c *Config) { c.OutputFormats = []string{} },
	}

	for name, mutate := range testCases {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}
}
