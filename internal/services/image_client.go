package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/f1-velocity/internal/providers"
	"github.com/stitts-dev/f1-velocity/pkg/cache"
	"github.com/stitts-dev/f1-velocity/pkg/config"
)

// NewImageBreaker builds the breaker service guarding the image API
func NewImageBreaker(cfg *config.Config, logger *logrus.Logger) *CircuitBreakerService {
	return NewCircuitBreakerService(cfg.CircuitBreakerThreshold, cfg.ExternalAPITimeout*3, logger)
}

// NewImageClient wires the API-Sports client with its cache and breaker.
// It returns providers.ErrMissingAPIKey when no key is configured.
func NewImageClient(ctx context.Context, cfg *config.Config, breaker *CircuitBreakerService, logger *logrus.Logger) (*providers.APISportsClient, error) {
	if !cfg.HasImageAPI() {
		return nil, providers.ErrMissingAPIKey
	}

	cacheProvider := cache.New(ctx, cfg.RedisURL, logger)

	return providers.NewAPISportsClient(providers.APISportsConfig{
		BaseURL:           cfg.APISportsBaseURL,
		APIKey:            cfg.APISportsKey,
		Timeout:           cfg.ExternalAPITimeout,
		RequestsPerSecond: cfg.ImageRateLimit,
		MaxRetries:        cfg.ImageMaxRetries,
		RetryBackoff:      cfg.ImageRetryBackoff,
		CacheTTL:          cfg.ImageCacheTTL,
	}, breaker, cacheProvider, logger)
}
