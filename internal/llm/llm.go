// Package llm provides the model backends used by the supervisor and the
// worker agents.
//
// A Backend takes an ordered list of role-tagged messages and an optional
// tool list and returns one assistant message, which may carry tool-call
// requests. Tools are a call parameter; nothing is bound to a client.
//
// Two adapters are provided: Anthropic (Messages API, also served by
// vscode-lm-proxy) and LangChain (any OpenAI-compatible endpoint via
// langchaingo). Transport failures are reported as *ConnectionError so
// callers can tell an unreachable backend apart from other failures.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentgraph/internal/state"
	"github.com/fyrsmithlabs/agentgraph/internal/tools"
)

// Backend invokes a language model once.
type Backend interface {
	Invoke(ctx context.Context, messages []state.Message, toolset []tools.Descriptor) (state.Message, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, messages []state.Message, toolset []tools.Descriptor) (state.Message, error)

// Invoke calls f.
func (f BackendFunc) Invoke(ctx context.Context, messages []state.Message, toolset []tools.Descriptor) (state.Message, error) {
	return f(ctx, messages, toolset)
}

// Providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Defaults match a local vscode-lm-proxy.
const (
	DefaultBaseURL     = "http://localhost:4000/anthropic"
	DefaultModel       = "claude-sonnet-4.5"
	DefaultAPIKey      = "dummy"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 4096
)

// Config selects and configures a backend.
type Config struct {
	Provider    string
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	MaxRetries  int
	// RateLimit is requests per second; zero disables limiting.
	RateLimit float64
	Burst     int
}

// DefaultConfig returns the proxy defaults.
func DefaultConfig() Config {
	return Config{
		Provider:    ProviderAnthropic,
		BaseURL:     DefaultBaseURL,
		Model:       DefaultModel,
		APIKey:      DefaultAPIKey,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		Timeout:     2 * time.Minute,
		MaxRetries:  2,
	}
}

// New builds the configured backend, rate limited when cfg.RateLimit > 0.
func New(cfg Config, logger *zap.Logger) (Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		b   Backend
		err error
	)
	switch cfg.Provider {
	case ProviderAnthropic, "":
		b = NewAnthropic(cfg)
	case ProviderOpenAI:
		b, err = NewLangChain(cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider %q (want %s or %s)", cfg.Provider, ProviderAnthropic, ProviderOpenAI)
	}
	if err != nil {
		return nil, err
	}
	logger.Info("llm backend configured",
		zap.String("provider", cfg.Provider),
		zap.String("base_url", cfg.BaseURL),
		zap.String("model", cfg.Model))
	if cfg.RateLimit > 0 {
		b = RateLimited(b, cfg.RateLimit, cfg.Burst)
	}
	return b, nil
}

// ErrBackendUnavailable is matched by every *ConnectionError.
var ErrBackendUnavailable = errors.New("model backend unavailable")

// DefaultHints are shown when the backend cannot be reached.
var DefaultHints = []string{
	"Make sure vscode-lm-proxy is running (default port 4000)",
	"Check llm.base_url or LM_PROXY_URL in your configuration",
}

// ConnectionError reports that the backend could not be reached.
type ConnectionError struct {
	Endpoint string
	Err      error
	Hints    []string
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("cannot reach model backend at %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Is reports ErrBackendUnavailable equivalence.
func (e *ConnectionError) Is(target error) bool {
	return target == ErrBackendUnavailable
}

// classify returns a ConnectionError when err is a transport failure.
// Cancellation of ctx is never classified.
func classify(ctx context.Context, endpoint string, err error, status int) *ConnectionError {
	if err == nil || ctx.Err() != nil {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) || isGatewayStatus(status) || looksLikeDialFailure(err) {
		return &ConnectionError{Endpoint: endpoint, Err: err, Hints: DefaultHints}
	}
	return nil
}

func isGatewayStatus(status int) bool {
	return status == 502 || status == 503 || status == 504
}

func looksLikeDialFailure(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection refused", "no such host", "connection reset", "eof"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
