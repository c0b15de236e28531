package analytics

import (
	"context"

	"github.com/nulzo/tier-router/internal/store"
	"github.com/nulzo/tier-router/pkg/api"
)

const (
	defaultDays = 7
	maxDays     = 365
)

type Service interface {
	GetUsageOverview(ctx context.Context, days int) (*api.UsageOverview, error)
}

type service struct {
	repo store.Repository
}

func NewService(repo store.Repository) Service {
	return &service{
		repo: repo,
	}
}

// GetUsageOverview defaults to the last week and caps the window at a year.
func (s *service) GetUsageOverview(ctx context.Context, days int) (*api.UsageOverview, error) {
	if days <= 0 {
		days = defaultDays
	}
	if days > maxDays {
		days = maxDays
	}

	daily, err := s.repo.Requests().GetDailyStats(ctx, days)
	if err != nil {
		return nil, err
	}
	tiers, err := s.repo.Requests().GetTierStats(ctx, days)
	if err != nil {
		return nil, err
	}

	out := &api.UsageOverview{
		Days:  days,
		Daily: make([]api.UsageDay, 0, len(daily)),
		Tiers: make([]api.UsageTier, 0, len(tiers)),
	}
	for _, d := range daily {
		out.Daily = append(out.Daily, api.UsageDay{
			Date:            d.Date,
			Tier:            d.Tier,
			TotalRequests:   d.TotalRequests,
			TotalTokens:     d.TotalTokens,
			TotalCostMicros: d.TotalCostMicros,
			AverageLatency:  d.AverageLatency,
		})
	}
	for _, t := range tiers {
		out.Tiers = append(out.Tiers, api.UsageTier{
			Tier:            t.Tier,
			TotalRequests:   t.TotalRequests,
			FallbackCount:   t.FallbackCount,
			FailedCount:     t.FailedCount,
			TotalTokens:     t.TotalTokens,
			TotalCostMicros: t.TotalCostMicros,
		})
	}
	return out, nil
}
