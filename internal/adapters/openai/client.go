// Package openai talks to the OpenAI HTTP API. It implements the prompt
// submitter with the Responses API and the conversation agent with either the
// Assistants API or Chat Completions.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/ewilliams-labs/tunnetilasi/internal/core/ports"
	"github.com/ewilliams-labs/tunnetilasi/internal/logging"
	"github.com/ewilliams-labs/tunnetilasi/internal/metrics"
)

const (
	providerName   = "openai"
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 60 * time.Second

	// maxResponseBytes caps how much of a reply body is read.
	maxResponseBytes = 4 << 20
)

// Config configures a Client.
type Config struct {
	BaseURL      string
	APIKey       string
	Model        string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	// RateLimit is requests per second. Zero disables limiting.
	RateLimit float64
	// BreakerFailures is how many consecutive failures open the circuit.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// Client is the shared HTTP plumbing of every OpenAI flavour.
type Client struct {
	baseURL     string
	model       string
	httpClient  *http.Client
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker[[]byte]
	maxRetries  int
	baseBackoff time.Duration
}

// statusError is a non-2xx answer from the API.
type statusError struct {
	Status  int
	Message string
}

func (e *statusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d", e.Status)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Message)
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// NewClient builds a Client. The API key is sent as a bearer token.
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	breakerTimeout := cfg.BreakerTimeout
	if breakerTimeout <= 0 {
		breakerTimeout = 30 * time.Second
	}

	transport := &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.APIKey, TokenType: "Bearer"}),
		Base:   http.DefaultTransport,
	}

	const cbName = "openai-api"
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)

	return &Client{
		baseURL:     baseURL,
		model:       model,
		httpClient:  &http.Client{Timeout: timeout, Transport: transport},
		limiter:     rate.NewLimiter(limit, 1),
		maxRetries:  cfg.MaxRetries,
		baseBackoff: cfg.RetryBackoff,
		breaker: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:        cbName,
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     breakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			IsSuccessful: countsAsSuccess,
			OnStateChange: func(name string, from, to gobreaker.State) {
				logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
				metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			},
		}),
	}
}

// countsAsSuccess keeps caller mistakes and cancellations from tripping the breaker.
func countsAsSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.Status >= 400 && se.Status < 500 && se.Status != http.StatusTooManyRequests
	}
	return false
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// do sends payload as JSON and decodes the reply into out. Every failure is
// returned as a *ports.ProviderError.
func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return fmt.Errorf("openai: marshal request: %w", err)
		}
	}

	raw, err := c.breaker.Execute(func() ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		var reader io.Reader = http.NoBody
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("OpenAI-Beta", "assistants=v2")

		resp, err := c.doRequestWithRetry(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &statusError{Status: resp.StatusCode, Message: errorMessage(data)}
		}
		return data, nil
	})
	if err != nil {
		return classify(err)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return ports.NewProviderError(providerName, ports.ReasonBadStatus, fmt.Errorf("decode response: %w", err))
		}
	}
	return nil
}

func errorMessage(data []byte) string {
	var parsed apiError
	if err := json.Unmarshal(data, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return ""
}

// classify maps a transport, status or breaker error onto a ProviderError.
func classify(err error) error {
	var pe *ports.ProviderError
	if errors.As(err, &pe) {
		return err
	}
	var se *statusError
	var ne net.Error
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return ports.NewProviderError(providerName, ports.ReasonCircuitOpen, err)
	case errors.Is(err, context.Canceled):
		return ports.NewProviderError(providerName, ports.ReasonCanceled, err)
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &ne) && ne.Timeout():
		return ports.NewProviderError(providerName, ports.ReasonTimeout, err)
	case errors.As(err, &se):
		return ports.NewProviderError(providerName, ports.ReasonBadStatus, err)
	default:
		return ports.NewProviderError(providerName, ports.ReasonUnavailable, err)
	}
}

// observe records an agent call once it finishes.
func observe(operation string, start time.Time, err *error) {
	metrics.RecordAgentCall(providerName, operation, time.Since(start), *err)
}
