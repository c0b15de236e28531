package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/tier-router/internal/buildinfo"
	"github.com/nulzo/tier-router/internal/gateway"
)

type HealthHandler struct {
	service   gateway.Service
	startTime time.Time
}

func NewHealthHandler(service gateway.Service) *HealthHandler {
	return &HealthHandler{
		service:   service,
		startTime: time.Now(),
	}
}

// Health returns the status, version and uptime of the gateway. It stays
// healthy with zero providers since placeholders are still served.
//
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	enabled := 0
	providers := h.service.Providers()
	for _, p := range providers {
		if p.Enabled {
			enabled++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":            "healthy",
		"version":           buildinfo.Version,
		"uptime":            time.Since(h.startTime).String(),
		"time":              time.Now().UTC().Format(time.RFC3339),
		"providers_enabled": enabled,
		"providers_total":   len(providers),
	})
}
