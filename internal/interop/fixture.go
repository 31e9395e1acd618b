package interop

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/eugenenazirov/provstore-interop/internal/config"
	"github.com/eugenenazirov/provstore-interop/internal/converter"
)

const (
	// ProvStoreConfigurationKey names the ProvStore section of a configuration document.
	ProvStoreConfigurationKey = "ProvStore"
	// ProvStoreConfigurationEnv names the variable holding a configuration file path.
	ProvStoreConfigurationEnv = "PROVSTORE_TEST_CONFIGURATION"
	// ProvStoreAPIKeyEnv names the variable holding a "user:key" credential.
	ProvStoreAPIKeyEnv = "PROVSTORE_API_KEY"
	// ProvStoreDefaultConfigurationFile is looked up next to the test definition.
	ProvStoreDefaultConfigurationFile = "provstore.yaml"
)

var (
	// ErrNotSetUp is returned when a configured fixture is required but SetUp has not succeeded.
	ErrNotSetUp = errors.New("fixture is not set up")
	// ErrNoConverter is returned by SetUp when the fixture cannot build a converter.
	ErrNoConverter = errors.New("fixture has no converter constructor")
)

// State is the lifecycle state of a Fixture.
type State int

const (
	StateUninitialized State = iota
	StateConfigured
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConfigured:
		return "configured"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// FixtureSettings describes where a fixture finds its configuration and how it
// builds the converter under test.
type FixtureSettings struct {
	Section     string
	ConfigEnv   string
	APIKeyEnv   string
	DefaultPath string

	// LookupEnv defaults to os.LookupEnv.
	LookupEnv    config.LookupEnv
	NewConverter func() converter.Converter
	Logger       *zap.Logger
}

// Fixture prepares a converter for one run of the interop suite.
type Fixture struct {
	settings FixtureSettings

	state      State
	cfg        config.Config
	origin     config.Origin
	credential config.CredentialSource
	conv       converter.Converter
	cleanups   []func()

	// release closes the converter built by the latest SetUp attempt.
	release func()
}

// NewFixture returns an uninitialized fixture.
func NewFixture(settings FixtureSettings) *Fixture {
	if settings.Logger == nil {
		settings.Logger = zap.NewNop()
	}
	return &Fixture{settings: settings}
}

// NewProvStoreFixture returns a fixture for the ProvStore converter.
// defaultPath is normally config.Colocated(ProvStoreDefaultConfigurationFile)
// evaluated in the test file.
func NewProvStoreFixture(defaultPath string, logger *zap.Logger, opts ...converter.Option) *Fixture {
	if logger != nil {
		opts = append([]converter.Option{converter.WithLogger(logger)}, opts...)
	}
	return NewFixture(FixtureSettings{
		Section:     ProvStoreConfigurationKey,
		ConfigEnv:   ProvStoreConfigurationEnv,
		APIKeyEnv:   ProvStoreAPIKeyEnv,
		DefaultPath: defaultPath,
		NewConverter: func() converter.Converter {
			return converter.NewProvStore(opts...)
		},
		Logger: logger,
	})
}

// SetUp resolves the configuration, applies the API key override and
// configures a fresh converter. harness is the injected configuration and may
// be nil. Configuration errors are returned as *config.Error; converter
// errors are returned unchanged. A converter left over from an earlier failed
// attempt is released before a new one is built.
func (f *Fixture) SetUp(harness map[string]any) error {
	if f.state == StateConfigured {
		return fmt.Errorf("set up: fixture is already %s", f.state)
	}
	if f.settings.NewConverter == nil {
		return fmt.Errorf("set up: %w", ErrNoConverter)
	}
	f.releaseConverter()

	cfg, origin, err := config.Resolve(f.settings.Section, config.Source{
		Injected:    harness,
		EnvVar:      f.settings.ConfigEnv,
		DefaultPath: f.settings.DefaultPath,
		LookupEnv:   f.settings.LookupEnv,
	})
	if err != nil {
		return err
	}
	f.origin = origin
	f.settings.Logger.Debug("configuration resolved",
		zap.String("section", f.settings.Section),
		zap.String("tier", string(origin.Tier)),
		zap.String("path", origin.Path),
	)

	f.credential = config.OverlayAPIKey(&cfg, f.settings.APIKeyEnv, f.settings.LookupEnv)
	switch f.credential {
	case config.CredentialEnvironment:
		f.settings.Logger.Info("using API key defined in " + f.settings.APIKeyEnv)
	default:
		f.settings.Logger.Info("using default API key defined in configuration file")
	}

	if err := cfg.Validate(); err != nil {
		return &config.Error{Section: f.settings.Section, Origin: origin, Err: err}
	}
	f.cfg = cfg

	conv := f.settings.NewConverter()
	if conv == nil {
		return fmt.Errorf("set up: %w", ErrNoConverter)
	}
	if closer, ok := conv.(interface{ CloseIdleConnections() }); ok {
		f.release = closer.CloseIdleConnections
	}
	if err := conv.Configure(cfg); err != nil {
		return err
	}

	f.conv = conv
	f.state = StateConfigured
	return nil
}

// Defer registers fn to run on TearDown. Cleanups run in reverse order.
func (f *Fixture) Defer(fn func()) {
	f.cleanups = append(f.cleanups, fn)
}

// TearDown releases everything acquired by SetUp and returns the fixture to
// the uninitialized state. It is safe to call after a failed or partial
// SetUp, and more than once.
func (f *Fixture) TearDown() {
	for i := len(f.cleanups) - 1; i >= 0; i-- {
		f.cleanups[i]()
	}
	f.cleanups = nil
	f.releaseConverter()
	f.cfg = config.Config{}
	f.origin = config.Origin{}
	f.credential = ""
	f.conv = nil
	f.state = StateUninitialized
}

func (f *Fixture) releaseConverter() {
	if f.release != nil {
		f.release()
		f.release = nil
	}
}

func (f *Fixture) State() State {
	return f.state
}

// Config returns the final configuration, credential overlay included.
func (f *Fixture) Config() config.Config {
	out := f.cfg
	out.InputFormats = append([]string(nil), f.cfg.InputFormats...)
	out.OutputFormats = append([]string(nil), f.cfg.OutputFormats...)
	out.SkipTests = append([]string(nil), f.cfg.SkipTests...)
	return out
}

// Origin reports which source the configuration was resolved from.
func (f *Fixture) Origin() config.Origin {
	return f.origin
}

// CredentialSource reports where the authorization value came from.
func (f *Fixture) CredentialSource() config.CredentialSource {
	return f.credential
}

// Converter returns the configured converter, or ErrNotSetUp.
func (f *Fixture) Converter() (converter.Converter, error) {
	if f.state != StateConfigured {
		return nil, ErrNotSetUp
	}
	return f.conv, nil
}
