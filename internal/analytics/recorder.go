package analytics

import (
	"database/sql"

	"github.com/nulzo/tier-router/internal/gateway"
	"github.com/nulzo/tier-router/internal/store/model"
)

// Recorder adapts the ingestor to the gateway's usage hook.
type Recorder struct {
	ingestor Ingestor
}

func NewRecorder(ingestor Ingestor) *Recorder {
	return &Recorder{ingestor: ingestor}
}

func (r *Recorder) Record(rec gateway.UsageRecord) {
	r.ingestor.Log(toRequestLog(rec))
}

func toRequestLog(rec gateway.UsageRecord) *model.RequestLog {
	log := &model.RequestLog{
		ID:           rec.ID,
		Tier:         rec.Tier.String(),
		ModelID:      rec.Model,
		ProviderID:   rec.Provider,
		Status:       rec.Status,
		InputTokens:  rec.PromptTokens,
		OutputTokens: rec.CompletionTokens,
		LatencyMS:    rec.Latency.Milliseconds(),
		IsStreamed:   rec.Stream,
		IsFallback:   rec.Fallback,
		CreatedAt:    rec.CreatedAt,
	}
	if rec.Error != "" {
		log.ErrorMessage = sql.NullString{String: rec.Error, Valid: true}
	}
	if rec.Stream && rec.TTFT > 0 {
		log.TTFTMS = sql.NullInt64{Int64: rec.TTFT.Milliseconds(), Valid: true}
	}
	return log
}
