package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrSectionMissing indicates the chosen source has no entry for the requested section.
	ErrSectionMissing = errors.New("configuration section missing")
	// ErrMalformed indicates the source could not be parsed into a Config.
	ErrMalformed = errors.New("malformed configuration")
	// ErrNoSource indicates none of the three sources is available.
	ErrNoSource = errors.New("no configuration source available")
	// ErrInvalid indicates a resolved configuration failed validation.
	ErrInvalid = errors.New("invalid configuration")
)

// LookupEnv retrieves an environment variable and reports whether it is set.
type LookupEnv func(key string) (string, bool)

// Config is the converter section of a configuration document.
type Config struct {
	URL           string   `yaml:"url"`
	Authorization string   `yaml:"authorization"`
	InputFormats  []string `yaml:"input-formats"`
	OutputFormats []string `yaml:"output-formats"`
	SkipTests     []string `yaml:"skip-tests"`
}

// Tier names the source a configuration was resolved from.
type Tier string

const (
	TierInjected    Tier = "injected"
	TierEnvironment Tier = "environment"
	TierDefault     Tier = "default"
)

// Origin records where a configuration came from.
type Origin struct {
	Tier Tier
	Path string
}

// Source describes the candidate configuration sources, highest priority first:
// Injected[section] > file named by EnvVar > DefaultPath.
type Source struct {
	Injected    map[string]any
	EnvVar      string
	DefaultPath string

	LookupEnv LookupEnv
	ReadFile  func(path string) ([]byte, error)
}

// Error is returned when no source yields a usable section.
type Error struct {
	Section string
	Origin  Origin
	Err     error
}

func (e *Error) Error() string {
	if e.Origin.Path != "" {
		return fmt.Sprintf("configuration %q (%s source %s): %v", e.Section, e.Origin.Tier, e.Origin.Path, e.Err)
	}
	return fmt.Sprintf("configuration %q (%s source): %v", e.Section, e.Origin.Tier, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Resolve picks the highest-priority source that is present and extracts
// section from it. Lower-priority sources are never consulted once a higher
// one is present, even if reading it fails.
//
// An EnvVar that is set to a blank value counts as unset and falls through to
// DefaultPath, since no file can be named by it. This differs from
// OverlayAPIKey, where a set but empty key still replaces the configured one.
func Resolve(section string, src Source) (Config, Origin, error) {
	lookup := src.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	readFile := src.ReadFile
	if readFile == nil {
		readFile = os.ReadFile
	}

	if value, ok := src.Injected[section]; ok {
		origin := Origin{Tier: TierInjected}
		cfg, err := decodeSection(value)
		if err != nil {
			return Config{}, origin, &Error{Section: section, Origin: origin, Err: err}
		}
		return cfg, origin, nil
	}

	if src.EnvVar != "" {
		if path, ok := lookup(src.EnvVar); ok && strings.TrimSpace(path) != "" {
			return loadSection(section, Origin{Tier: TierEnvironment, Path: strings.TrimSpace(path)}, readFile)
		}
	}

	origin := Origin{Tier: TierDefault, Path: src.DefaultPath}
	if src.DefaultPath == "" {
		return Config{}, origin, &Error{Section: section, Origin: origin, Err: ErrNoSource}
	}
	return loadSection(section, origin, readFile)
}

// LoadHarness reads a harness configuration document: a YAML mapping from
// section names to section values, suitable for Source.Injected.
func LoadHarness(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read harness configuration: %w", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse harness configuration: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}

// Colocated returns the path of name inside the directory holding the
// caller's source file.
func Colocated(name string) string {
	_, file, _, ok := runtime.Caller(1)
	if !ok {
		return name
	}
	return filepath.Join(filepath.Dir(file), name)
}

func loadSection(section string, origin Origin, readFile func(string) ([]byte, error)) (Config, Origin, error) {
	data, err := readFile(origin.Path)
	if err != nil {
		return Config{}, origin, &Error{Section: section, Origin: origin, Err: fmt.Errorf("read file: %w", err)}
	}

	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Config{}, origin, &Error{Section: section, Origin: origin, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}

	node, ok := doc[section]
	if !ok || isNull(&node) {
		return Config{}, origin, &Error{Section: section, Origin: origin, Err: ErrSectionMissing}
	}

	var cfg Config
	if err := node.Decode(&cfg); err != nil {
		return Config{}, origin, &Error{Section: section, Origin: origin, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	return cfg, origin, nil
}

// decodeSection accepts either a Config or any YAML-shaped value.
func decodeSection(value any) (Config, error) {
	switch v := value.(type) {
	case nil:
		return Config{}, ErrSectionMissing
	case Config:
		return v.clone(), nil
	case *Config:
		if v == nil {
			return Config{}, ErrSectionMissing
		}
		return v.clone(), nil
	}

	data, err := yaml.Marshal(value)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return cfg, nil
}

func isNull(node *yaml.Node) bool {
	return node.Kind == 0 || (node.Kind == yaml.ScalarNode && node.ShortTag() == "!!null")
}

func (c Config) clone() Config {
	out := c
	out.InputFormats = append([]string(nil), c.InputFormats...)
	out.OutputFormats = append([]string(nil), c.OutputFormats...)
	out.SkipTests = append([]string(nil), c.SkipTests...)
	return out
}
