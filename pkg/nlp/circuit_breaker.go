package nlp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/soundprediction/ontoreason/pkg/alert"
	"github.com/soundprediction/ontoreason/pkg/config"
)

// CircuitBreakerClient wraps a Client with circuit breaking logic
type CircuitBreakerClient struct {
	client Client
	cb     *gobreaker.CircuitBreaker
	name   string
}

var _ Client = (*CircuitBreakerClient)(nil)

// NewCircuitBreakerClient creates a new circuit breaker client. The breaker
// trips once MinRequests calls in the current interval have failed at
// ReadyToTripRatio or worse.
func NewCircuitBreakerClient(client Client, cfg config.CircuitBreakerConfig, alerter alert.Alerter, name string, logger *slog.Logger) *CircuitBreakerClient {
	if logger == nil {
		logger = slog.Default()
	}
	if alerter == nil {
		alerter = &alert.NoOpAlerter{}
	}
	logger = logger.With("component", "nlp.circuit_breaker", "breaker", name)

	minRequests := max(cfg.MinRequests, 1)
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    time.Duration(cfg.Interval) * time.Second,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.ReadyToTripRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "from", from.String(), "to", to.String())
			if to != gobreaker.StateOpen {
				return
			}
			msg := fmt.Sprintf("Circuit breaker '%s' changed from %s to %s after repeated failures.", name, from, to)
			if err := alerter.Alert(fmt.Sprintf("Circuit breaker tripped: %s", name), msg); err != nil {
				logger.Error("Failed to send alert", "error", err)
			}
		},
	}

	return &CircuitBreakerClient{
		client: client,
		cb:     gobreaker.NewCircuitBreaker(st),
		name:   name,
	}
}

// State reports the breaker state.
func (c *CircuitBreakerClient) State() gobreaker.State {
	return c.cb.State()
}

// Chat implements Client
func (c *CircuitBreakerClient) Chat(ctx context.Context, messages []Message) (*Response, error) {
	return c.execute(func() (*Response, error) { return c.client.Chat(ctx, messages) })
}

// ChatJSON implements Client
func (c *CircuitBreakerClient) ChatJSON(ctx context.Context, messages []Message) (*Response, error) {
	return c.execute(func() (*Response, error) { return c.client.ChatJSON(ctx, messages) })
}

func (c *CircuitBreakerClient) execute(fn func() (*Response, error)) (*Response, error) {
	resp, err := c.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		return nil, err
	}
	return resp.(*Response), nil
}

// Close implements Client
func (c *CircuitBreakerClient) Close() error {
	return c.client.Close()
}
