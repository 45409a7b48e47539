package provider

import (
	"context"
	"net/http"
)

// healthPaths are probed in order; /v1/models is the last-resort API call.
var healthPaths = []string{"/health", "/v1/health", "/status", "/", "/v1/models"}

// CheckHealth reports whether any probe answers 2xx. It never returns an error.
func (c *Client) CheckHealth(ctx context.Context) bool {
	for _, path := range healthPaths {
		if _, err := c.do(ctx, "provider.health", http.MethodGet, path, nil, c.cfg.HealthTimeout); err == nil {
			c.logger.Info().Str("target", path).Msg("provider health check passed")
			return true
		}
		if ctx.Err() != nil {
			break
		}
	}
	c.logger.Warn().Msg("provider health checks failed")
	return false
}
