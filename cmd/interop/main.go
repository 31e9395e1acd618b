package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/eugenenazirov/provstore-interop/internal/application"
	"github.com/eugenenazirov/provstore-interop/internal/config"
	"github.com/eugenenazirov/provstore-interop/internal/converter"
	"github.com/eugenenazirov/provstore-interop/internal/interop"
	"github.com/eugenenazirov/provstore-interop/internal/logging"
)

const shutdownGracePeriod = 10 * time.Second

var signalNotify = signal.Notify

type runParams struct {
	configFile     string
	testCases      string
	workDir        string
	filters        interop.RegexFilters
	timeout        time.Duration
	rateLimitRPS   float64
	rateLimitBurst int
	verbose        bool
}

type serveParams struct {
	port           string
	apiKeys        []string
	rateLimitRPS   float64
	rateLimitBurst int
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var (
		rp       runParams
		sp       serveParams
		envFile  string
		logLevel string
		debug    bool
	)

	app := kingpin.New("interop", "ProvStore converter interoperability test runner")
	app.ErrorWriter(stderr)
	app.UsageWriter(stderr)
	app.Flag("env-file", "Dotenv file loaded before reading the environment (ignored when absent)").Default(".env").StringVar(&envFile)
	app.Flag("log-level", "Log level (debug, info, warn, error)").Default("info").StringVar(&logLevel)
	app.Flag("debug", "Shorthand for --log-level=debug").BoolVar(&debug)

	runCmd := app.Command("run", "Run the interop test cases through ProvStore")
	runCmd.Flag("config", "Harness YAML file; its ProvStore section takes priority over "+interop.ProvStoreConfigurationEnv).StringVar(&rp.configFile)
	runCmd.Flag("test-cases", "Directory with one sub-directory per test case").Required().StringVar(&rp.testCases)
	runCmd.Flag("work-dir", "Directory receiving converted documents (temporary when empty)").StringVar(&rp.workDir)
	runCmd.Flag("run", "Regex pattern(s) selecting tests to run").SetValue(&rp.filters.MustMatch)
	runCmd.Flag("skip", "Regex pattern(s) selecting tests not to run").SetValue(&rp.filters.MustNotMatch)
	runCmd.Flag("timeout", "Timeout for each ProvStore request").Default(converter.DefaultTimeout.String()).DurationVar(&rp.timeout)
	runCmd.Flag("rate-limit-rps", "ProvStore requests per second (0 disables throttling)").Default("5").Float64Var(&rp.rateLimitRPS)
	runCmd.Flag("rate-limit-burst", "Burst of ProvStore requests").Default("5").IntVar(&rp.rateLimitBurst)
	runCmd.Flag("verbose", "Print skipped and started tests").Short('v').BoolVar(&rp.verbose)

	defaults := application.DefaultEmulatorConfig()
	serveCmd := app.Command("serve", "Serve an in-memory ProvStore emulator")
	serveCmd.Flag("port", "HTTP port or address the emulator listens on").Default(defaults.Port).StringVar(&sp.port)
	serveCmd.Flag("api-key", "Accepted \"user:key\" credential (repeatable; any key when omitted)").StringsVar(&sp.apiKeys)
	serveCmd.Flag("rate-limit-rps", "Requests per second allowed (0 disables)").Default(fmt.Sprint(defaults.RateLimitRPS)).Float64Var(&sp.rateLimitRPS)
	serveCmd.Flag("rate-limit-burst", "Burst capacity for rate limiter (0 disables)").Default(fmt.Sprint(defaults.RateLimitBurst)).IntVar(&sp.rateLimitBurst)

	command, err := app.Parse(args)
	if err != nil {
		fmt.Fprintf(stderr, "interop: %v\n", err)
		return 2
	}

	if debug {
		logLevel = "debug"
	}
	logger, err := logging.New(logLevel)
	if err != nil {
		fmt.Fprintf(stderr, "interop: failed to initialize logger: %v\n", err)
		return 2
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := loadEnvFile(envFile); err != nil {
		logger.Warn("failed to load env file", zap.String("path", envFile), zap.Error(err))
	}

	switch command {
	case runCmd.FullCommand():
		rerun := rerunBase(args)
		return runSuite(rp, rerun, stdout, logger)
	case serveCmd.FullCommand():
		return serve(sp, stdout, logger)
	}
	return 2
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func runSuite(p runParams, rerun []string, stdout io.Writer, logger *zap.Logger) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var harness map[string]any
	if p.configFile != "" {
		var err error
		if harness, err = config.LoadHarness(p.configFile); err != nil {
			logger.Error("failed to load harness configuration", zap.Error(err))
			return 1
		}
	}

	defaultPath := filepath.Join(p.testCases, interop.ProvStoreDefaultConfigurationFile)
	fixture := interop.NewProvStoreFixture(defaultPath, logger,
		converter.WithTimeout(p.timeout),
		converter.WithRateLimit(p.rateLimitRPS, p.rateLimitBurst),
	)
	defer fixture.TearDown()

	if err := fixture.SetUp(harness); err != nil {
		logger.Error("failed to set up ProvStore fixture", zap.Error(err))
		return 1
	}
	conv, err := fixture.Converter()
	if err != nil {
		logger.Error("fixture has no converter", zap.Error(err))
		return 1
	}

	cases, err := interop.LoadTestCases(p.testCases)
	if err != nil {
		logger.Error("failed to load test cases", zap.Error(err))
		return 1
	}

	workDir := p.workDir
	if workDir == "" {
		if workDir, err = os.MkdirTemp("", "provstore-interop-"); err != nil {
			logger.Error("failed to create work directory", zap.Error(err))
			return 1
		}
		defer os.RemoveAll(workDir)
	} else if err := os.MkdirAll(workDir, 0o755); err != nil {
		logger.Error("failed to create work directory", zap.Error(err))
		return 1
	}

	cfg := fixture.Config()
	steps := interop.Plan(cases, conv.InputFormats(), conv.OutputFormats(), cfg.SkipTests)
	fmt.Fprintf(stdout, "Running %d interop tests against %s\n", len(steps), cfg.URL)

	runner := interop.Runner{
		Converter:  conv,
		Comparator: interop.LineSetComparator{},
		Filter:     p.filters.AsFilter,
		TestLogger: interop.ConsoleTestLogger{Out: stdout, Verbose: p.verbose},
		Logger:     logger,
		WorkDir:    workDir,
	}
	results := runner.Run(ctx, steps)

	fmt.Fprintln(stdout)
	interop.PrintResults(stdout, results)
	if !results.OK() {
		fmt.Fprintf(stdout, "\nTo rerun the failed tests:\n  %s\n", interop.RerunCommand(rerun, results))
		return 1
	}
	return 0
}

// rerunBase drops any --run selections from the original arguments.
func rerunBase(args []string) []string {
	out := []string{filepath.Base(os.Args[0])}
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--run" && i+1 < len(args):
			i++
		case strings.HasPrefix(args[i], "--run="):
		default:
			out = append(out, args[i])
		}
	}
	return out
}

func serve(p serveParams, stdout io.Writer, logger *zap.Logger) int {
	cfg := application.DefaultEmulatorConfig()
	cfg.Port = p.port
	cfg.APIKeys = p.apiKeys
	cfg.RateLimitRPS = p.rateLimitRPS
	cfg.RateLimitBurst = p.rateLimitBurst

	app, err := application.New(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize emulator", zap.Error(err))
		return 1
	}
	if err := app.Start(); err != nil {
		logger.Error("failed to start emulator", zap.Error(err))
		return 1
	}
	fmt.Fprintf(stdout, "ProvStore emulator serving %s\n", app.DocumentsURL())

	shutdown(app.Server(), shutdownGracePeriod, logger)
	return 0
}

func shutdown(server *http.Server, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down emulator")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
