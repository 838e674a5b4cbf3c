package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// ThrottledClient wraps a Client so that calls share a token-bucket budget.
type ThrottledClient struct {
	Client
	limiter *rate.Limiter
}

// NewThrottledClient limits calls on inner to perMinute requests per minute with the given burst.
// A non-positive perMinute disables throttling.
func NewThrottledClient(inner Client, perMinute, burst int) *ThrottledClient {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Limit(float64(perMinute) / 60.0)
	}
	if burst < 1 {
		burst = 1
	}
	return &ThrottledClient{
		Client:  inner,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// GenerateContent waits for a token, then delegates.
func (c *ThrottledClient) GenerateContent(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("llm throttle: %w", err)
	}
	return c.Client.GenerateContent(ctx, prompt, tier)
}

// GenerateJSON waits for a token, then delegates.
func (c *ThrottledClient) GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("llm throttle: %w", err)
	}
	return c.Client.GenerateJSON(ctx, prompt, tier)
}
