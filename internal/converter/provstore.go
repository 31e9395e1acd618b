package converter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/eugenenazirov/provstore-interop/internal/config"
	"github.com/eugenenazirov/provstore-interop/internal/formats"
)

// DefaultTimeout bounds each individual request to ProvStore.
const DefaultTimeout = 30 * time.Second

const (
	defaultRatePerSecond = 5.0
	defaultBurst         = 5
	maxErrorBody         = 512
)

// ProvStore converts documents by uploading them to a ProvStore instance
// and downloading them again in the requested format.
type ProvStore struct {
	Base

	url           string
	authorization string

	client      *http.Client
	limiter     *rate.Limiter
	timeout     time.Duration
	logger      *zap.Logger
	newRecordID func() string
}

var _ Converter = (*ProvStore)(nil)

// Option configures a ProvStore converter.
type Option func(*ProvStore)

// WithHTTPClient overrides the HTTP client (primarily for tests).
func WithHTTPClient(client *http.Client) Option {
	return func(p *ProvStore) {
		p.client = client
	}
}

// WithTimeout sets the per-request timeout. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(p *ProvStore) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithRateLimit throttles requests to ratePerSecond with the given burst.
// A non-positive rate disables throttling.
func WithRateLimit(ratePerSecond float64, burst int) Option {
	return func(p *ProvStore) {
		if ratePerSecond <= 0 {
			p.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(ratePerSecond), burst)
	}
}

// WithLogger attaches a logger for request tracing.
func WithLogger(logger *zap.Logger) Option {
	return func(p *ProvStore) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithRecordID overrides the generator for the rec_id sent with each upload.
func WithRecordID(fn func() string) Option {
	return func(p *ProvStore) {
		if fn != nil {
			p.newRecordID = fn
		}
	}
}

// NewProvStore constructs an unconfigured ProvStore converter.
func NewProvStore(opts ...Option) *ProvStore {
	p := &ProvStore{
		client:      http.DefaultClient,
		limiter:     rate.NewLimiter(rate.Limit(defaultRatePerSecond), defaultBurst),
		timeout:     DefaultTimeout,
		logger:      zap.NewNop(),
		newRecordID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Configure applies the format lists plus the ProvStore url and authorization.
func (p *ProvStore) Configure(cfg config.Config) error {
	if err := p.Base.Configure(cfg); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.URL) == "" {
		return missingKey("url")
	}
	if strings.TrimSpace(cfg.Authorization) == "" {
		return missingKey("authorization")
	}

	p.url = strings.TrimSpace(cfg.URL)
	if !strings.HasSuffix(p.url, "/") {
		p.url += "/"
	}
	p.authorization = cfg.Authorization
	return nil
}

// URL returns the documents endpoint in use, always ending in "/".
func (p *ProvStore) URL() string {
	return p.url
}

// Authorization returns the Authorization header value in use.
func (p *ProvStore) Authorization() string {
	return p.authorization
}

// CloseIdleConnections releases pooled connections held by the HTTP client.
func (p *ProvStore) CloseIdleConnections() {
	p.client.CloseIdleConnections()
}

// Convert uploads inFile, downloads it in the format named by outFile's
// extension and removes the uploaded document again. The document is removed
// even when the download fails or ctx is cancelled; the removal is still
// bounded by the request timeout.
func (p *ProvStore) Convert(ctx context.Context, inFile, outFile string) (err error) {
	wrap := func(err error) error {
		return &ConversionError{InFile: inFile, OutFile: outFile, Err: err}
	}

	if p.url == "" {
		return wrap(ErrNotConfigured)
	}
	if err := CheckInput(inFile); err != nil {
		return wrap(err)
	}

	inFormat := formats.FromPath(inFile)
	outFormat := formats.FromPath(outFile)
	if err := p.CheckFormats(inFormat, outFormat); err != nil {
		return wrap(err)
	}

	content, err := os.ReadFile(inFile)
	if err != nil {
		return wrap(fmt.Errorf("read input: %w", err))
	}

	id, err := p.store(ctx, inFormat, content)
	if err != nil {
		return wrap(err)
	}
	defer func() {
		if delErr := p.remove(context.WithoutCancel(ctx), id); delErr != nil {
			if err == nil {
				err = wrap(delErr)
				return
			}
			p.logger.Warn("failed to remove document after conversion error",
				zap.String("id", id), zap.Error(delErr))
		}
	}()

	body, err := p.fetch(ctx, id, outFormat)
	if err != nil {
		return wrap(err)
	}

	if err := os.WriteFile(outFile, body, 0o644); err != nil {
		return wrap(fmt.Errorf("write output: %w", err))
	}
	return nil
}

type storeRequest struct {
	Content string `json:"content"`
	Public  bool   `json:"public"`
	RecID   string `json:"rec_id"`
}

type storeResponse struct {
	ID json.Number `json:"id"`
}

func (p *ProvStore) store(ctx context.Context, format string, content []byte) (string, error) {
	contentType, _ := formats.ContentType(format)
	jsonType, _ := formats.ContentType(formats.JSON)

	payload, err := json.Marshal(storeRequest{
		Content: string(content),
		Public:  true,
		RecID:   p.newRecordID(),
	})
	if err != nil {
		return "", fmt.Errorf("encode store request: %w", err)
	}

	headers := http.Header{}
	headers.Set("Content-Type", contentType)
	headers.Set("Accept", jsonType)
	headers.Set("Authorization", p.authorization)

	status, body, err := p.do(ctx, http.MethodPost, p.url, headers, payload)
	if err != nil {
		return "", err
	}
	if status != http.StatusCreated {
		return "", statusError(http.MethodPost, p.url, status, body)
	}

	var resp storeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode store response: %w", err)
	}
	if resp.ID == "" {
		return "", errors.New("store response has no document id")
	}

	p.logger.Debug("stored document", zap.String("id", resp.ID.String()), zap.String("format", format))
	return resp.ID.String(), nil
}

func (p *ProvStore) fetch(ctx context.Context, id, format string) ([]byte, error) {
	target := p.url + id + "." + format
	status, body, err := p.do(ctx, http.MethodGet, target, nil, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, statusError(http.MethodGet, target, status, body)
	}
	return body, nil
}

func (p *ProvStore) remove(ctx context.Context, id string) error {
	target := p.url + id
	headers := http.Header{}
	headers.Set("Authorization", p.authorization)

	status, body, err := p.do(ctx, http.MethodDelete, target, headers, nil)
	if err != nil {
		return err
	}
	if status != http.StatusNoContent {
		return statusError(http.MethodDelete, target, status, body)
	}
	return nil
}

func (p *ProvStore) do(ctx context.Context, method, target string, headers http.Header, payload []byte) (int, []byte, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return 0, nil, fmt.Errorf("wait for rate limiter: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build %s request: %w", method, err)
	}
	for k, v := range headers {
		req.Header[k] = v
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read %s response: %w", method, err)
	}

	p.logger.Debug("provstore request",
		zap.String("method", method),
		zap.String("url", target),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)
	return resp.StatusCode, body, nil
}

func statusError(method, target string, status int, body []byte) error {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody]
	}
	if text == "" {
		return fmt.Errorf("%w: %s %s returned %d", ErrUnexpectedStatus, method, target, status)
	}
	return fmt.Errorf("%w: %s %s returned %d: %s", ErrUnexpectedStatus, method, target, status, text)
}
