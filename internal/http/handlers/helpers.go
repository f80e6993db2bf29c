package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/lumen-backend/internal/http/response"
	"github.com/yungbote/lumen-backend/internal/platform/ctxutil"
)

// requestUser returns the authenticated caller, responding 401 when absent.
func requestUser(c *gin.Context) (uuid.UUID, bool) {
	id := ctxutil.UserID(c.Request.Context())
	if id == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("not authenticated"))
		return uuid.Nil, false
	}
	return id, true
}

func pathID(c *gin.Context, name, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, code, err)
		return uuid.Nil, false
	}
	return id, true
}

func startSSE(c *gin.Context) {
	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()
}

func writeSSE(c *gin.Context, event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, raw); err != nil {
		return err
	}
	c.Writer.Flush()
	return nil
}

// bindOptionalJSON binds the body into v, treating an empty body as {}.
func bindOptionalJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return false
	}
	return true
}
