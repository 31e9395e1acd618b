package application

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eugenenazirov/provstore-interop/internal/api"
	"github.com/eugenenazirov/provstore-interop/internal/storage"
)

// EmulatorConfig holds the settings of the ProvStore emulator server.
type EmulatorConfig struct {
	Port                 string
	APIKeys              []string
	ReadHeaderTimeout    time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	EnableRequestLogging bool
	RateLimitRPS         float64
	RateLimitBurst       int
}

// DefaultEmulatorConfig returns the settings used by "interop serve".
func DefaultEmulatorConfig() EmulatorConfig {
	return EmulatorConfig{
		Port:                 "8080",
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         15 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		RateLimitRPS:         25,
		RateLimitBurst:       50,
	}
}

// App encapsulates the emulator dependencies and HTTP server.
type App struct {
	storage  *storage.MemoryStorage
	handler  *api.Handler
	router   http.Handler
	logger   *zap.Logger
	server   *http.Server
	listener net.Listener
}

// New wires storage, handler and router into an HTTP server.
func New(cfg EmulatorConfig, logger *zap.Logger) (*App, error) {
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	store := storage.NewMemoryStorage()
	handler := api.NewHandler(store, api.WithAPIKeys(cfg.APIKeys...))
	router := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)

	return &App{
		storage: store,
		handler: handler,
		router:  router,
		logger:  logger,
		server:  NewServer(cfg, router),
	}, nil
}

// NewServer creates an HTTP server from the provided configuration.
func NewServer(cfg EmulatorConfig, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start binds the listener and serves in a goroutine. Binding happens
// synchronously so the address is usable as soon as Start returns.
func (a *App) Start() error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.server.Addr, err)
	}
	a.listener = ln

	go func() {
		a.logger.Info("provstore emulator listening", zap.String("addr", ln.Addr().String()))
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("server error", zap.Error(err))
		}
	}()
	return nil
}

// DocumentsURL returns the documents endpoint of a started emulator.
func (a *App) DocumentsURL() string {
	if a.listener == nil {
		return ""
	}
	addr := a.listener.Addr().String()
	if host, port, err := net.SplitHostPort(addr); err == nil && (host == "" || host == "::" || host == "0.0.0.0") {
		addr = net.JoinHostPort("127.0.0.1", port)
	}
	return "http://" + addr + api.DocumentsPath
}

// Shutdown stops the server gracefully, forcing it closed if ctx expires.
func (a *App) Shutdown(ctx context.Context) error {
	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := a.server.Close(); closeErr != nil {
			return fmt.Errorf("force close: %w", closeErr)
		}
	}
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

// Handler returns the emulator's root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.router
}
