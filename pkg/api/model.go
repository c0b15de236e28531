package api

import "time"

// Model is one entry of the public model catalog.
type Model struct {
	ID      string `json:"id" mapstructure:"id"`
	Object  string `json:"object" mapstructure:"-"`
	Created int64  `json:"created" mapstructure:"-"`
	OwnedBy string `json:"owned_by" mapstructure:"owned_by"`
}

type ModelList struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}

// UsageDay is one row of the usage overview.
type UsageDay struct {
	Date            string  `json:"date"`
	Tier            string  `json:"tier"`
	TotalRequests   int     `json:"total_requests"`
	TotalTokens     int     `json:"total_tokens"`
	TotalCostMicros int64   `json:"total_cost_micros"`
	AverageLatency  float64 `json:"avg_latency_ms"`
}

// UsageTier summarises one tier over the requested window.
type UsageTier struct {
	Tier            string `json:"tier"`
	TotalRequests   int    `json:"total_requests"`
	FallbackCount   int    `json:"fallback_count"`
	FailedCount     int    `json:"failed_count"`
	TotalTokens     int    `json:"total_tokens"`
	TotalCostMicros int64  `json:"total_cost_micros"`
}

// UsageOverview is the body of the usage analytics endpoint.
type UsageOverview struct {
	Days  int         `json:"days"`
	Daily []UsageDay  `json:"daily"`
	Tiers []UsageTier `json:"tiers"`
}

// Generation is the stored record of one request, as served by the
// generation lookup endpoint.
type Generation struct {
	ID               string    `json:"id"`
	Tier             string    `json:"tier"`
	Model            string    `json:"model"`
	Provider         string    `json:"provider_name"`
	Status           string    `json:"status"`
	Error            string    `json:"error,omitempty"`
	Streamed         bool      `json:"streamed"`
	Fallback         bool      `json:"fallback"`
	TokensPrompt     int       `json:"tokens_prompt"`
	TokensCompletion int       `json:"tokens_completion"`
	LatencyMS        int64     `json:"latency_ms"`
	TTFTMS           *int64    `json:"ttft_ms,omitempty"`
	TotalCost        float64   `json:"total_cost"`
	CreatedAt        time.Time `json:"created_at"`
}

type GenerationResponse struct {
	Data Generation `json:"data"`
}
