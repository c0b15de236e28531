package model

import (
	"database/sql"
	"time"
)

// ModelPricing is the price of one model in micro-dollars per 1k tokens.
type ModelPricing struct {
	ModelID               string    `db:"model_id" json:"model_id"`
	InputCostMicrosPer1k  int64     `db:"input_cost_micros_per_1k" json:"input_cost_micros_per_1k"`
	OutputCostMicrosPer1k int64     `db:"output_cost_micros_per_1k" json:"output_cost_micros_per_1k"`
	UpdatedAt             time.Time `db:"updated_at" json:"updated_at"`
}

// Cost returns the micro-dollar cost of a request with the given token counts.
func (p ModelPricing) Cost(inputTokens, outputTokens int) int64 {
	return (int64(inputTokens)*p.InputCostMicrosPer1k + int64(outputTokens)*p.OutputCostMicrosPer1k) / 1000
}

// RequestLog captures one finished inference request.
type RequestLog struct {
	ID              string         `db:"id" json:"id"`
	Tier            string         `db:"tier" json:"tier"`
	ModelID         string         `db:"model_id" json:"model_id"`
	ProviderID      string         `db:"provider_id" json:"provider_id"`
	Status          string         `db:"status" json:"status"`
	ErrorMessage    sql.NullString `db:"error_message" json:"error_message,omitempty"`
	InputTokens     int            `db:"input_tokens" json:"input_tokens"`
	OutputTokens    int            `db:"output_tokens" json:"output_tokens"`
	LatencyMS       int64          `db:"latency_ms" json:"latency_ms"`
	TTFTMS          sql.NullInt64  `db:"ttft_ms" json:"ttft_ms,omitempty"`
	TotalCostMicros int64          `db:"total_cost_micros" json:"total_cost_micros"`
	IsStreamed      bool           `db:"is_streamed" json:"is_streamed"`
	IsFallback      bool           `db:"is_fallback" json:"is_fallback"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
}

// DailyStats is the aggregate for one day and tier.
type DailyStats struct {
	Date            string  `db:"date" json:"date"`
	Tier            string  `db:"tier" json:"tier"`
	TotalRequests   int     `db:"total_requests" json:"total_requests"`
	TotalTokens     int     `db:"total_tokens" json:"total_tokens"`
	TotalCostMicros int64   `db:"total_cost_micros" json:"total_cost_micros"`
	AverageLatency  float64 `db:"avg_latency" json:"avg_latency"`
}

// TierStats summarises a tier over a window.
type TierStats struct {
	Tier            string `db:"tier" json:"tier"`
	TotalRequests   int    `db:"total_requests" json:"total_requests"`
	FallbackCount   int    `db:"fallback_count" json:"fallback_count"`
	FailedCount     int    `db:"failed_count" json:"failed_count"`
	TotalTokens     int    `db:"total_tokens" json:"total_tokens"`
	TotalCostMicros int64  `db:"total_cost_micros" json:"total_cost_micros"`
}
