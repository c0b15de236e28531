package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/tier-router/internal/gateway"
	"github.com/nulzo/tier-router/pkg/api"
)

type ModelHandler struct {
	service gateway.Service
}

func NewModelHandler(service gateway.Service) *ModelHandler {
	return &ModelHandler{service: service}
}

// ListModels returns the static catalog. It does not reflect which models
// are currently routable.
//
// GET /v1/models
func (h *ModelHandler) ListModels(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Catalog().List())
}

// GET /v1/models/:id
func (h *ModelHandler) GetModel(c *gin.Context) {
	m, ok := h.service.Catalog().Get(c.Param("id"))
	if !ok {
		_ = c.Error(api.NewError(http.StatusNotFound, api.InvalidRequestType,
			"The model '"+c.Param("id")+"' does not exist", api.WithCode("model_not_found"), api.WithParam("id")))
		return
	}
	c.JSON(http.StatusOK, m)
}
