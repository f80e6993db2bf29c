package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/lumen-backend/internal/http/response"
	"github.com/yungbote/lumen-backend/internal/platform/logger"
	"github.com/yungbote/lumen-backend/internal/realtime"
	"github.com/yungbote/lumen-backend/internal/services"
)

type RealtimeHandler struct {
	log      *logger.Logger
	hub      *realtime.Hub
	jobs     services.JobService
	sessions *services.SessionRegistry
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.Hub, jobs services.JobService, sessions *services.SessionRegistry) *RealtimeHandler {
	return &RealtimeHandler{
		log:      log.With("handler", "RealtimeHandler"),
		hub:      hub,
		jobs:     jobs,
		sessions: sessions,
	}
}

// GET /api/realtime/:channel
// Streams one channel until the client disconnects. Job and session
// channels are limited to their owner, user channels to that user.
func (h *RealtimeHandler) Stream(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	channel := c.Param("channel")
	kind, id, err := realtime.ParseChannel(channel)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_channel", err)
		return
	}

	ctx := c.Request.Context()
	switch kind {
	case realtime.ChannelUser:
		if id != userID {
			response.RespondServiceError(c, services.ErrForbidden)
			return
		}
	case realtime.ChannelJob:
		if _, err := h.jobs.Get(ctx, userID, id); err != nil {
			response.RespondServiceError(c, err)
			return
		}
	case realtime.ChannelSession:
		// Holding the controller keeps the session live while it is watched.
		_, release, err := h.sessions.Open(ctx, userID, id)
		if err != nil {
			response.RespondServiceError(c, err)
			return
		}
		defer release()
	}

	sub := h.hub.Subscribe(channel)
	defer sub.Close()
	h.log.Debug("Realtime stream open", "channel", channel, "user_id", userID, "subscription_id", sub.ID)
	h.hub.ServeHTTP(c.Writer, c.Request, sub)
	if n := sub.Dropped(); n > 0 {
		h.log.Warn("Realtime subscriber dropped messages", "channel", channel, "dropped", n)
	}
}
