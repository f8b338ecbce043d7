package resilience

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

var (
	// ErrCircuitOpen is returned without contacting the supplier while its
	// breaker is open or probing.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrUnexpectedStatus is returned by the JSON helpers for non-2xx replies.
	ErrUnexpectedStatus = errors.New("unexpected status code")
)

// ClientConfig configures a Client.
type ClientConfig struct {
	// Name identifies the supplier in breaker state, errors and the
	// registry.
	Name string

	// Timeout bounds each HTTP attempt. Default: 10s.
	Timeout time.Duration

	// MaxRetries is the number of extra attempts after a network error or
	// 5xx reply. Zero disables retries.
	MaxRetries uint64

	// InitialInterval and MaxInterval shape the exponential backoff between
	// attempts. Defaults: 100ms and 5s.
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// CircuitBreaker defaults to DefaultCircuitBreakerConfig(Name).
	CircuitBreaker *CircuitBreakerConfig

	// Registry, when set, tracks the client's outcomes under Name.
	Registry *Registry
}

// DefaultClientConfig retries three times behind the default breaker.
func DefaultClientConfig(name string) ClientConfig {
	cb := DefaultCircuitBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         10 * time.Second,
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		CircuitBreaker:  &cb,
	}
}

// SupplierClientConfig is the configuration of the data supplier clients.
// It never retries: each supplier has a fallback, so the first failure
// degrades immediately and the breaker trips after three in a row.
func SupplierClientConfig(name string, timeout time.Duration, registry *Registry) ClientConfig {
	cfg := DefaultClientConfig(name)
	cfg.MaxRetries = 0
	if timeout > 0 {
		cfg.Timeout = timeout
	}

	cb := SupplierCircuitBreakerConfig(name)
	if registry != nil {
		cb.OnStateChange = func(name string, _, to gobreaker.State) {
			registry.RecordStateChange(name, to)
		}
	}
	cfg.CircuitBreaker = &cb
	cfg.Registry = registry
	return cfg
}

func (c ClientConfig) withDefaults() ClientConfig {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = 100 * time.Millisecond
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 5 * time.Second
	}
	if c.CircuitBreaker == nil {
		cb := DefaultCircuitBreakerConfig(c.Name)
		c.CircuitBreaker = &cb
	}
	return c
}

// Client is an HTTP client for one upstream supplier. Every attempt goes
// through the supplier's circuit breaker; 5xx replies and network errors
// count as breaker failures and are retried up to MaxRetries.
type Client struct {
	cfg     ClientConfig
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
}

// NewClient creates a client and registers it when cfg.Registry is set.
func NewClient(cfg ClientConfig) *Client {
	cfg = cfg.withDefaults()
	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: NewCircuitBreaker[*http.Response](*cfg.CircuitBreaker), //nolint:bodyclose // type parameter
	}
	if cfg.Registry != nil {
		cfg.Registry.Register(cfg.Name, c)
	}
	return c
}

// Name returns the supplier name.
func (c *Client) Name() string { return c.cfg.Name }

// Do sends req with the request's context. See DoWithContext.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.DoWithContext(req.Context(), req)
}

// DoWithContext sends req, retrying transient failures. When retries run out
// on a 5xx reply, that reply is returned with a nil error so the caller can
// inspect it. An open breaker fails fast with ErrCircuitOpen.
func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	var last *http.Response

	err := backoff.Retry(func() error {
		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // returned to the caller
			return c.attempt(ctx, req)
		})
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return backoff.Permanent(ErrCircuitOpen)
		case err != nil:
			if resp != nil {
				if last != nil {
					last.Body.Close()
				}
				last = resp
			}
			return err
		}
		if last != nil {
			last.Body.Close()
		}
		last = resp
		return nil
	}, c.policy(ctx))

	if err != nil {
		c.record(err)
		if last != nil {
			return last, nil
		}
		return nil, err
	}
	c.record(nil)
	return last, nil
}

func (c *Client) policy(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.InitialInterval
	bo.MaxInterval = c.cfg.MaxInterval
	bo.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(bo, c.cfg.MaxRetries), ctx)
}

// attempt sends one copy of req. The body is rewound through GetBody so the
// request can be replayed.
func (c *Client) attempt(ctx context.Context, req *http.Request) (*http.Response, error) {
	clone := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
	}

	resp, err := c.http.Do(clone)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return resp, &ServerError{StatusCode: resp.StatusCode}
	}
	return resp, nil
}

// GetJSON issues a GET and decodes a 2xx JSON body into out.
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return c.roundTripJSON(ctx, req, out)
}

// PostJSON POSTs body as JSON with the extra headers and decodes a 2xx JSON
// reply into out.
func (c *Client) PostJSON(ctx context.Context, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.roundTripJSON(ctx, req, out)
}

func (c *Client) roundTripJSON(ctx context.Context, req *http.Request, out any) error {
	resp, err := c.DoWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("%s request: %w", c.cfg.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		_, _ = io.Copy(io.Discard, resp.Body)
		err := fmt.Errorf("%s: %w: %d", c.cfg.Name, ErrUnexpectedStatus, resp.StatusCode)
		c.record(err)
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s decode response: %w", c.cfg.Name, err)
	}
	return nil
}

// record reports an outcome to the registry, if any.
func (c *Client) record(err error) {
	switch {
	case c.cfg.Registry == nil:
	case err == nil:
		c.cfg.Registry.RecordSuccess(c.cfg.Name)
	default:
		c.cfg.Registry.RecordFailure(c.cfg.Name, err)
	}
}

// CircuitBreakerState returns the breaker state.
func (c *Client) CircuitBreakerState() gobreaker.State { return c.breaker.State() }

// CircuitBreakerCounts returns the breaker counters.
func (c *Client) CircuitBreakerCounts() gobreaker.Counts { return c.breaker.Counts() }

// ServerError is the breaker failure recorded for a 5xx reply.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}
