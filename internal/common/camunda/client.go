// internal/common/camunda/client.go
package camunda

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"ocap-agent/internal/common/config"
	"ocap-agent/internal/common/errors"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Client wraps the Zeebe gateway connection used by the OCAP job workers.
type Client struct {
	client  zbc.Client
	timeout time.Duration
	backoff Backoff
}

// Backoff bounds retries of gateway commands.
type Backoff struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

var DefaultBackoff = Backoff{
	MaxRetries: 3,
	BaseDelay:  time.Second,
	MaxDelay:   10 * time.Second,
}

// Dial connects to the configured gateway and confirms it answers a topology
// request before returning.
func Dial(ctx context.Context, cfg config.CamundaConfig) (*Client, error) {
	zc, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         cfg.BrokerAddress,
		UsePlaintextConnection: !cfg.TLS,
	})
	if err != nil {
		return nil, fmt.Errorf("create zeebe client: %w", err)
	}

	c := &Client{
		client:  zc,
		timeout: config.GetDuration(cfg.RequestTimeout),
		backoff: DefaultBackoff,
	}
	if c.timeout <= 0 {
		c.timeout = 30 * time.Second
	}

	if err := c.HealthCheck(ctx); err != nil {
		_ = zc.Close()
		return nil, fmt.Errorf("zeebe gateway %s: %w", cfg.BrokerAddress, err)
	}
	return c, nil
}

func (c *Client) GetClient() zbc.Client {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}

// HealthCheck asks the gateway for its topology.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := Do(ctx, c.backoff, "topology", func(ctx context.Context) (int, error) {
		topo, err := c.client.NewTopologyCommand().Send(ctx)
		if err != nil {
			return 0, err
		}
		return len(topo.GetBrokers()), nil
	})
	return err
}

// Do runs a gateway command, retrying transient gRPC failures with capped
// exponential backoff. Final failures come back as a StandardError.
func Do[T any](ctx context.Context, b Backoff, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		res, err := fn(ctx)
		if err == nil {
			return res, nil
		}
		if !retryable(err) || attempt >= b.MaxRetries {
			return zero, classify(err, op, attempt)
		}

		delay := b.BaseDelay << attempt
		if delay > b.MaxDelay {
			delay = b.MaxDelay
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, classify(ctx.Err(), op, attempt)
		}
	}
}

func retryable(err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return true
	}
	return false
}

func classify(err error, op string, attempt int) error {
	detail := fmt.Sprintf("zeebe %s: %v", op, err)
	if attempt > 0 {
		detail = fmt.Sprintf("zeebe %s after %d retries: %v", op, attempt, err)
	}

	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated:
		return errors.NewAuthenticationError(detail)
	case codes.NotFound:
		return errors.NewRecordNotFoundError("zeebe resource", op)
	}
	stdErr := errors.NewInternalError(stderrors.New(detail))
	stdErr.Retryable = retryable(err)
	return stdErr
}
