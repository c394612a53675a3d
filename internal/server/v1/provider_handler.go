package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nulzo/llm-gateway/internal/server/validator"
	"github.com/nulzo/llm-gateway/pkg/api"
)

type ProviderHandler struct {
	service Gateway
}

func NewProviderHandler(service Gateway) *ProviderHandler {
	return &ProviderHandler{service: service}
}

// List handles GET /v1/providers.
func (h *ProviderHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"providers": h.service.ListProviders(c.Request.Context())})
}

// SetCredentials handles PUT /v1/providers/:name/credentials. The update is
// validated against the provider's auth mode; a rejected update changes
// nothing and reports why.
func (h *ProviderHandler) SetCredentials(c *gin.Context) {
	var update api.CredentialUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		_ = c.Error(api.ValidationError(validator.ParseValidationError(err)))
		return
	}

	result := h.service.SetCredentials(c.Request.Context(), c.Param("name"), update)
	if !result.Success {
		c.JSON(http.StatusBadRequest, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

type enableRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// SetEnabled handles PUT /v1/providers/:name/enabled.
func (h *ProviderHandler) SetEnabled(c *gin.Context) {
	var req enableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.ValidationError(validator.ParseValidationError(err)))
		return
	}

	if err := h.service.SetEnabled(c.Request.Context(), c.Param("name"), *req.Enabled); err != nil {
		_ = c.Error(api.NotFoundError(err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": *req.Enabled})
}

// Verify handles POST /v1/providers/:name/verify: a cheap authenticated call
// against the live vendor. An optional request body carries candidate
// credentials to store before probing, so callers can test a key in one call.
func (h *ProviderHandler) Verify(c *gin.Context) {
	name := c.Param("name")

	if c.Request.ContentLength > 0 {
		var update api.CredentialUpdate
		if err := c.ShouldBindJSON(&update); err != nil {
			_ = c.Error(api.ValidationError(validator.ParseValidationError(err)))
			return
		}
		if result := h.service.SetCredentials(c.Request.Context(), name, update); !result.Success {
			c.JSON(http.StatusOK, result)
			return
		}
	}

	if err := h.service.VerifyConnection(c.Request.Context(), name); err != nil {
		c.JSON(http.StatusOK, api.Failure(err))
		return
	}
	c.JSON(http.StatusOK, api.Success())
}

// Models handles GET /v1/providers/:name/models: the vendor's live model list.
func (h *ProviderHandler) Models(c *gin.Context) {
	ids, err := h.service.ListModels(c.Request.Context(), c.Param("name"))
	if err != nil {
		_ = c.Error(api.UpstreamFailure("Failed to list models", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": ids})
}
