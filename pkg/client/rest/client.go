// Package rest provides a resilient outbound HTTP client shared by
// notification channels and anything else posting JSON to an external
// endpoint: retries via go-retryablehttp, plus an optional circuit
// breaker so a wedged endpoint stops being hammered.
package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/warehouseops/pipeline/pkg/resilience"
)

type Config struct {
	Timeout   time.Duration `env:"CLIENT_TIMEOUT" env-default:"10s"`
	Retries   int           `env:"CLIENT_RETRIES" env-default:"3"`
	UserAgent string        `env:"CLIENT_USER_AGENT" env-default:"warehouseops-pipeline"`

	CircuitBreakerEnabled   bool          `env:"CLIENT_CB_ENABLED" env-default:"true"`
	CircuitBreakerThreshold int64         `env:"CLIENT_CB_THRESHOLD" env-default:"5"`
	CircuitBreakerTimeout   time.Duration `env:"CLIENT_CB_TIMEOUT" env-default:"30s"`
}

// Client wraps http.Client with retry and circuit breaker protection.
type Client struct {
	httpClient     *http.Client
	circuitBreaker *resilience.CircuitBreaker
	name           string
}

// New creates a retrying HTTP client, optionally guarded by a named
// circuit breaker so repeated failures against one endpoint (e.g. a
// single notification channel) stop being retried immediately.
func New(name string, cfg Config) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.Retries
	retryClient.HTTPClient.Timeout = cfg.Timeout
	retryClient.Logger = nil

	client := &Client{httpClient: retryClient.StandardClient(), name: name}

	if cfg.CircuitBreakerEnabled {
		client.circuitBreaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:             name,
			FailureThreshold: cfg.CircuitBreakerThreshold,
			SuccessThreshold: 2,
			Timeout:          cfg.CircuitBreakerTimeout,
		})
	}

	return client
}

// Do executes the request with circuit breaker protection.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.circuitBreaker == nil {
		return c.httpClient.Do(req)
	}

	var resp *http.Response
	err := c.circuitBreaker.Execute(req.Context(), func(ctx context.Context) error {
		var err error
		resp, err = c.httpClient.Do(req.WithContext(ctx))
		if err == nil && resp != nil && resp.StatusCode >= 500 {
			return &serverError{statusCode: resp.StatusCode}
		}
		return err
	})

	if _, ok := err.(*serverError); ok {
		return resp, nil
	}
	return resp, err
}

type serverError struct{ statusCode int }

func (e *serverError) Error() string { return "server error" }
