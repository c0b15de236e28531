package store

import (
	"context"
	"errors"

	"github.com/nulzo/tier-router/internal/store/model"
)

var ErrNotFound = errors.New("record not found")

// Repository is the main contract for the data layer.
type Repository interface {
	Requests() RequestRepository
	Pricing() PricingRepository

	// transaction support
	WithTx(ctx context.Context, fn func(repo Repository) error) error

	Close() error
}

type RequestRepository interface {
	// Log stores a finished request.
	Log(ctx context.Context, log *model.RequestLog) error
	// LogBatch stores several logs in one transaction.
	LogBatch(ctx context.Context, logs []*model.RequestLog) error
	GetByID(ctx context.Context, id string) (*model.RequestLog, error)
	// GetDailyStats returns aggregates grouped by day and tier, newest day first.
	GetDailyStats(ctx context.Context, days int) ([]model.DailyStats, error)
	// GetTierStats returns aggregates per tier over the last days.
	GetTierStats(ctx context.Context, days int) ([]model.TierStats, error)
}

type PricingRepository interface {
	// Get returns ErrNotFound when the model has no price.
	Get(ctx context.Context, modelID string) (*model.ModelPricing, error)
	List(ctx context.Context) ([]model.ModelPricing, error)
	// Upsert inserts or replaces the given prices.
	Upsert(ctx context.Context, prices []model.ModelPricing) error
}
