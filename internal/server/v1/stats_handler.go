package v1

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nulzo/llm-gateway/pkg/api"
)

type StatsHandler struct {
	service Gateway
}

func NewStatsHandler(service Gateway) *StatsHandler {
	return &StatsHandler{service: service}
}

// Requests handles GET /v1/requests?limit=N, newest first.
func (h *StatsHandler) Requests(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	logs, err := h.service.RecentRequests(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(api.InternalError("Failed to load request history", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": logs})
}

// Daily handles GET /v1/stats/daily?days=N.
func (h *StatsHandler) Daily(c *gin.Context) {
	days := intQuery(c, "days", 30)
	stats, err := h.service.DailyStats(c.Request.Context(), days)
	if err != nil {
		_ = c.Error(api.InternalError("Failed to aggregate stats", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

func intQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
