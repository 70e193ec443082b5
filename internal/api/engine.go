package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// TriggerTick asks the engine to generate one price tick.
func (c *Client) TriggerTick(ctx context.Context) (*TickResponse, error) {
	var resp TickResponse
	if err := c.get(ctx, "/api/price/tick", nil, &resp); err != nil {
		return nil, fmt.Errorf("trigger tick: %w", err)
	}
	return &resp, nil
}

// GetLatestTick fetches the most recent tick.
func (c *Client) GetLatestTick(ctx context.Context) (*PriceTick, error) {
	var resp PriceTick
	if err := c.get(ctx, "/api/price/latest", nil, &resp); err != nil {
		return nil, fmt.Errorf("get latest tick: %w", err)
	}
	return &resp, nil
}

// GetHistory fetches up to limit recent ticks, newest first.
func (c *Client) GetHistory(ctx context.Context, limit int) ([]PriceTick, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var resp HistoryResponse
	if err := c.get(ctx, "/api/price/history", query, &resp); err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	return resp.Ticks, nil
}

// GetSupply fetches the global supply counters.
func (c *Client) GetSupply(ctx context.Context) (*SupplyResponse, error) {
	var resp SupplyResponse
	if err := c.get(ctx, "/api/mining/supply", nil, &resp); err != nil {
		return nil, fmt.Errorf("get supply: %w", err)
	}
	return &resp, nil
}

// Claim submits a mining claim for the token's user.
func (c *Client) Claim(ctx context.Context) (*ClaimResponse, error) {
	var resp ClaimResponse
	if err := c.post(ctx, "/api/mining/claim", &resp); err != nil {
		return nil, fmt.Errorf("claim: %w", err)
	}
	return &resp, nil
}

// GetStatus fetches the token user's mining eligibility.
func (c *Client) GetStatus(ctx context.Context) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.get(ctx, "/api/mining/status", nil, &resp); err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}
	return &resp, nil
}

// Health checks the engine's liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	var resp HealthResponse
	if err := c.get(ctx, "/health", nil, &resp); err != nil {
		return fmt.Errorf("health: %w", err)
	}
	return nil
}
