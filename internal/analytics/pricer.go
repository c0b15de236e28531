package analytics

import (
	"context"
	"errors"
	"time"

	"github.com/nulzo/tier-router/internal/store"
	"github.com/nulzo/tier-router/internal/store/cache"
	"github.com/nulzo/tier-router/internal/store/model"
	"go.uber.org/zap"
)

const pricingTTL = 10 * time.Minute

// Pricer resolves model prices through a cache in front of the store.
// Models without a price cost nothing.
type Pricer struct {
	repo   store.Repository
	cache  cache.CacheService
	logger *zap.Logger
}

func NewPricer(repo store.Repository, c cache.CacheService, logger *zap.Logger) *Pricer {
	if c == nil {
		c = cache.NewMemoryCache()
	}
	return &Pricer{repo: repo, cache: c, logger: logger}
}

func (p *Pricer) Price(ctx context.Context, modelID string) model.ModelPricing {
	key := "pricing:" + modelID

	var cached model.ModelPricing
	err := p.cache.Get(ctx, key, &cached)
	if err == nil {
		return cached
	}
	if !errors.Is(err, cache.ErrMiss) {
		p.logger.Warn("Pricing cache read failed", zap.String("model", modelID), zap.Error(err))
	}

	price := model.ModelPricing{ModelID: modelID}
	found, err := p.repo.Pricing().Get(ctx, modelID)
	switch {
	case err == nil:
		price = *found
	case errors.Is(err, store.ErrNotFound):
		p.logger.Debug("No pricing for model, cost recorded as zero", zap.String("model", modelID))
	default:
		p.logger.Error("Failed to load pricing", zap.String("model", modelID), zap.Error(err))
		return price
	}

	if err := p.cache.Set(ctx, key, price, pricingTTL); err != nil {
		p.logger.Warn("Pricing cache write failed", zap.String("model", modelID), zap.Error(err))
	}
	return price
}

// Cost returns the micro-dollar cost of the given token counts for modelID.
func (p *Pricer) Cost(ctx context.Context, modelID string, inputTokens, outputTokens int) int64 {
	return p.Price(ctx, modelID).Cost(inputTokens, outputTokens)
}
