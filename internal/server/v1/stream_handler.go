package v1

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nulzo/llm-gateway/internal/server/validator"
	"github.com/nulzo/llm-gateway/pkg/api"
)

type StreamHandler struct {
	service Gateway
}

func NewStreamHandler(service Gateway) *StreamHandler {
	return &StreamHandler{service: service}
}

// Stream handles POST /v1/stream: the canonical event stream over SSE. Each
// event is one data: frame; the stream ends with data: [DONE]. Client
// disconnect cancels the request context, which stops the upstream stream.
func (h *StreamHandler) Stream(c *gin.Context) {
	var req api.StreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.ValidationError(validator.ParseValidationError(err)))
		return
	}

	events := h.service.Stream(c.Request.Context(), &req)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		ev, ok := <-events
		if !ok {
			_, _ = io.WriteString(w, "data: [DONE]\n\n")
			return false
		}

		data, err := json.Marshal(ev)
		if err != nil {
			return false
		}
		_, err = fmt.Fprintf(w, "data: %s\n\n", data)
		return err == nil
	})
}
