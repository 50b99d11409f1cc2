// ABOUTME: Provider configuration and functional options
// ABOUTME: Carries the mode switch, endpoint, retry budget, and injectable collaborators

package provider

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/2389/portfolio-chat/internal/clock"
)

// Defaults for the configuration surface.
const (
	DefaultBaseURL      = "http://localhost:8000"
	DefaultChatEndpoint = "/chat"
	DefaultMaxRetries   = 3
	DefaultTimeout      = 10 * time.Second
)

// Options selects the mode and configures the live endpoint.
type Options struct {
	BaseURL      string
	ChatEndpoint string
	MaxRetries   int
	Timeout      time.Duration
	UseMock      bool
}

// DefaultOptions returns the defaults: live mode against localhost:8000/chat,
// 3 retries, 10s timeout.
func DefaultOptions() Options {
	return Options{
		BaseURL:      DefaultBaseURL,
		ChatEndpoint: DefaultChatEndpoint,
		MaxRetries:   DefaultMaxRetries,
		Timeout:      DefaultTimeout,
	}
}

// URL joins the base URL and chat endpoint.
func (o Options) URL() string {
	return strings.TrimSuffix(o.BaseURL, "/") + o.ChatEndpoint
}

// Validate checks the options needed by live mode. Simulated mode only
// needs the mode flag, so endpoint problems are ignored when UseMock is set.
func (o Options) Validate() error {
	if o.MaxRetries < 0 {
		return fmt.Errorf("max retries must be >= 0, got %d", o.MaxRetries)
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0, got %s", o.Timeout)
	}
	if o.UseMock {
		return nil
	}
	if o.BaseURL == "" {
		return errors.New("base url is required in live mode")
	}
	if !strings.HasPrefix(o.ChatEndpoint, "/") {
		return fmt.Errorf("chat endpoint must start with /, got %q", o.ChatEndpoint)
	}
	return nil
}

// Option customizes the collaborators used by providers.
type Option func(*settings)

type settings struct {
	clock      clock.Clock
	httpClient *http.Client
	logger     *slog.Logger
	triggers   []Trigger
	latency    func() time.Duration
}

func newSettings(opts []Option) *settings {
	s := &settings{
		clock:      clock.New(),
		httpClient: &http.Client{},
		logger:     slog.Default(),
		triggers:   DefaultTriggers(),
		latency:    RandomLatency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithClock sets the clock used for timeouts, backoff, and simulated latency.
func WithClock(c clock.Clock) Option {
	return func(s *settings) { s.clock = c }
}

// WithHTTPClient sets the HTTP client used by live mode. Its own Timeout is
// left alone; the per-attempt timeout is enforced through the clock.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) { s.httpClient = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTriggers replaces the simulated responder's trigger table.
func WithTriggers(t []Trigger) Option {
	return func(s *settings) { s.triggers = t }
}

// WithLatency replaces the simulated responder's latency source.
func WithLatency(f func() time.Duration) Option {
	return func(s *settings) { s.latency = f }
}
