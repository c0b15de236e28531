package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/tier-router/internal/gateway"
	"github.com/nulzo/tier-router/internal/server/validator"
	"github.com/nulzo/tier-router/pkg/api"
)

type RoutingHandler struct {
	service gateway.Service
}

func NewRoutingHandler(service gateway.Service) *RoutingHandler {
	return &RoutingHandler{service: service}
}

// Get returns the model chains and the state of every provider.
//
// GET /v1/routing
func (h *RoutingHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"chains":    h.service.Chains(),
		"providers": h.service.Providers(),
	})
}

// Classify reports the tier a request would be routed to without calling
// any provider.
//
// POST /v1/routing/classify
func (h *RoutingHandler) Classify(c *gin.Context) {
	var req api.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.ValidationError(validator.ParseValidationError(err)))
		return
	}

	tier := h.service.Classify(&req)
	c.JSON(http.StatusOK, gin.H{
		"tier":  tier,
		"chain": h.service.Chains()[tier.String()],
	})
}
