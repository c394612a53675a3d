package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type ModelHandler struct {
	service Gateway
}

func NewModelHandler(service Gateway) *ModelHandler {
	return &ModelHandler{service: service}
}

// List handles GET /v1/models: the full static catalog.
func (h *ModelHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": h.service.CatalogModels()})
}
