// internal/common/camunda/client.go
package camunda

import (
	"context"
	"fmt"
	"strings"
	"time"

	"opas-admin-workers/internal/common/errors"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// Client is a connected Zeebe gateway client.
type Client struct {
	client zbc.Client
	config *ClientConfig
}

type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
	RequestTimeout         time.Duration
	RetryConfig            *RetryConfig
}

// RetryConfig bounds the exponential backoff used for job commands.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

var DefaultRetryConfig = &RetryConfig{
	MaxRetries: 3,
	BaseDelay:  time.Second,
	MaxDelay:   10 * time.Second,
}

// NewClientWithConfig dials the gateway and fails unless the broker topology
// answers within ConnectionTimeout.
func NewClientWithConfig(config *ClientConfig) (*Client, error) {
	if config.RetryConfig == nil {
		config.RetryConfig = DefaultRetryConfig
	}
	if config.ConnectionTimeout <= 0 {
		config.ConnectionTimeout = 10 * time.Second
	}

	zb, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         config.GatewayAddress,
		UsePlaintextConnection: config.UsePlaintextConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("create zeebe client: %w", err)
	}

	c := &Client{client: zb, config: config}
	if err := c.HealthCheck(context.Background()); err != nil {
		zb.Close()
		return nil, fmt.Errorf("zeebe gateway %s: %w", config.GatewayAddress, err)
	}
	return c, nil
}

func (c *Client) GetClient() zbc.Client {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}

// HealthCheck asks the gateway for the broker topology.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectionTimeout)
	defer cancel()

	if _, err := c.client.NewTopologyCommand().Send(ctx); err != nil {
		return fmt.Errorf("topology request failed: %w", err)
	}
	return nil
}

// Retry runs a Zeebe command with exponential backoff. Only transient
// failures are retried; the last error is returned as a StandardError.
func Retry(
	ctx context.Context,
	cfg *RetryConfig,
	operationName string,
	commandFunc func(context.Context) (interface{}, error),
) (interface{}, error) {
	if cfg == nil {
		cfg = DefaultRetryConfig
	}

	for attempt := 0; ; attempt++ {
		result, err := commandFunc(ctx)
		if err == nil {
			return result, nil
		}

		kind := classifyZeebeError(err)
		if !kind.transient || attempt == cfg.MaxRetries {
			return nil, kind.wrap(operationName, attempt, err)
		}

		delay := cfg.BaseDelay << attempt
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("operation %s cancelled after %d attempts: %w", operationName, attempt+1, ctx.Err())
		}
	}
}

type zeebeErrorKind struct {
	phrases   []string
	transient bool
	wrap      func(operation string, attempt int, err error) error
}

func describe(operation string, attempt int, err error) string {
	msg := fmt.Sprintf("zeebe %s failed", operation)
	if attempt > 0 {
		msg += fmt.Sprintf(" after %d attempts", attempt+1)
	}
	return msg + ": " + err.Error()
}

var zeebeErrorKinds = []zeebeErrorKind{
	{
		phrases:   []string{"timeout", "deadline exceeded"},
		transient: true,
		wrap: func(op string, n int, err error) error {
			return errors.NewTimeoutError("zeebe", fmt.Errorf("%s", describe(op, n, err)))
		},
	},
	{
		phrases:   []string{"connection refused", "connection reset", "unavailable", "unreachable", "broken pipe"},
		transient: true,
		wrap: func(op string, n int, err error) error {
			return errors.NewExternalServiceError("zeebe", fmt.Errorf("%s", describe(op, n, err)))
		},
	},
	{
		phrases: []string{"not found"},
		wrap: func(op string, n int, err error) error {
			return errors.NewResourceNotFoundError("zeebe", describe(op, n, err))
		},
	},
	{
		phrases: []string{"already exists"},
		wrap: func(op string, n int, err error) error {
			return errors.NewBusinessRuleError(describe(op, n, err), "Resource already exists")
		},
	},
	{
		phrases: []string{"permission denied", "unauthorized", "unauthenticated"},
		wrap: func(op string, n int, err error) error {
			return errors.NewAuthenticationError(describe(op, n, err))
		},
	},
}

var unknownZeebeError = zeebeErrorKind{
	wrap: func(op string, n int, err error) error {
		return errors.NewExternalServiceError("zeebe", fmt.Errorf("%s", describe(op, n, err)))
	},
}

func classifyZeebeError(err error) zeebeErrorKind {
	msg := strings.ToLower(err.Error())
	for _, kind := range zeebeErrorKinds {
		for _, p := range kind.phrases {
			if strings.Contains(msg, p) {
				return kind
			}
		}
	}
	return unknownZeebeError
}
