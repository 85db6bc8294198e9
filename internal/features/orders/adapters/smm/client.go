// Package smm integrates the SMM panel API (a single POST endpoint that
// dispatches on an "action" field) as an order provider.
package smm

import (
	"context"
	"fmt"

	"smm-orders/internal/core/config"
	"smm-orders/internal/core/metrics"
	"smm-orders/internal/core/requestdef"
	"smm-orders/internal/features/orders/domain"
	"smm-orders/internal/features/orders/ports"
)

// ProviderID identifies this provider in the registry and on submitted orders.
const ProviderID = 1

// Client builds and sends the provider's request definitions.
type Client struct {
	sender  *requestdef.Sender
	host    string
	key     string
	metrics *metrics.Metrics
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithMetrics counts reconciled status updates.
func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a client for the configured panel.
func NewClient(cfg config.ProviderConfig, sender *requestdef.Sender, opts ...ClientOption) *Client {
	c := &Client{
		sender: sender,
		host:   cfg.Host,
		key:    cfg.Key,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) endpoint() endpoint {
	return endpoint{host: c.host, key: c.key}
}

// Add returns the submission definition for order.
func (c *Client) Add(order *domain.Order, interval domain.Interval) AddDefinition {
	return AddDefinition{endpoint: c.endpoint(), order: order, interval: interval}
}

// Status returns the status definition for target.
func (c *Client) Status(target domain.Target) StatusDefinition {
	return StatusDefinition{endpoint: c.endpoint(), target: target}
}

// Cancel returns the cancellation definition for target.
func (c *Client) Cancel(target domain.Target) CancelDefinition {
	return CancelDefinition{endpoint: c.endpoint(), target: target}
}

// Balance is the account state reported by the panel.
type Balance struct {
	Balance  string `json:"balance"`
	Currency string `json:"currency"`
}

// Balance fetches the account balance.
func (c *Client) Balance(ctx context.Context) (*Balance, error) {
	resp, err := c.sender.Send(ctx, BalanceDefinition{endpoint: c.endpoint()})
	if err != nil {
		return nil, err
	}
	if err := resp.Throw(); err != nil {
		return nil, err
	}

	var b Balance
	if err := resp.JSON(&b); err != nil {
		return nil, err
	}
	if b.Balance == "" {
		return nil, &ProtocolError{Action: ActionBalance, Message: "balance missing from response", Body: string(resp.Body)}
	}
	return &b, nil
}

// HealthCheck verifies that the panel is reachable and the key is accepted.
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.Balance(ctx); err != nil {
		return fmt.Errorf("smm health check failed: %w", err)
	}
	return nil
}

// Constructor binds providers to this client. Its signature matches
// registry.Constructor.
func (c *Client) Constructor() func(domain.Target, ports.OrderStore) (ports.Provider, error) {
	return func(target domain.Target, store ports.OrderStore) (ports.Provider, error) {
		p, err := NewProvider(c, target, store)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}
