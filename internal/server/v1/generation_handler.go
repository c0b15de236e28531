package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/tier-router/internal/store"
	"github.com/nulzo/tier-router/internal/store/model"
	"github.com/nulzo/tier-router/pkg/api"
)

type GenerationHandler struct {
	repo store.Repository
}

func NewGenerationHandler(repo store.Repository) *GenerationHandler {
	return &GenerationHandler{repo: repo}
}

// GET /v1/generation?id=chatcmpl-...
func (h *GenerationHandler) GetGeneration(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		_ = c.Error(api.InvalidRequest("id parameter is required", api.WithParam("id")))
		return
	}

	log, err := h.repo.Requests().GetByID(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		_ = c.Error(api.NewError(http.StatusNotFound, api.InvalidRequestType, "Generation not found", api.WithCode("not_found")))
		return
	}
	if err != nil {
		_ = c.Error(api.InternalError("Failed to load generation", err))
		return
	}

	c.JSON(http.StatusOK, api.GenerationResponse{Data: toGeneration(log)})
}

func toGeneration(log *model.RequestLog) api.Generation {
	g := api.Generation{
		ID:               log.ID,
		Tier:             log.Tier,
		Model:            log.ModelID,
		Provider:         log.ProviderID,
		Status:           log.Status,
		Error:            log.ErrorMessage.String,
		Streamed:         log.IsStreamed,
		Fallback:         log.IsFallback,
		TokensPrompt:     log.InputTokens,
		TokensCompletion: log.OutputTokens,
		LatencyMS:        log.LatencyMS,
		TotalCost:        float64(log.TotalCostMicros) / 1_000_000.0,
		CreatedAt:        log.CreatedAt,
	}
	if log.TTFTMS.Valid {
		ttft := log.TTFTMS.Int64
		g.TTFTMS = &ttft
	}
	return g
}
