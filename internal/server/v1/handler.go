package v1

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nulzo/llm-gateway/internal/catalog"
	"github.com/nulzo/llm-gateway/internal/store/model"
	"github.com/nulzo/llm-gateway/pkg/api"
)

// Gateway is the slice of the gateway service the HTTP layer consumes.
type Gateway interface {
	Stream(ctx context.Context, req *api.StreamRequest) <-chan api.Event

	ListProviders(ctx context.Context) []api.ProviderInfo
	SetCredentials(ctx context.Context, name string, update api.CredentialUpdate) api.UpdateResult
	SetEnabled(ctx context.Context, name string, enabled bool) error
	VerifyConnection(ctx context.Context, name string) error
	ListModels(ctx context.Context, name string) ([]string, error)

	CatalogModels() []catalog.Model

	RecentRequests(ctx context.Context, limit int) ([]model.RequestLog, error)
	DailyStats(ctx context.Context, days int) ([]model.DailyStats, error)
}

type HealthHandler struct{}

func NewHealthHandler() *HealthHandler { return &HealthHandler{} }

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
