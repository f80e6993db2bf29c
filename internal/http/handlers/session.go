package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/lumen-backend/internal/generation/stream"
	"github.com/yungbote/lumen-backend/internal/http/response"
	"github.com/yungbote/lumen-backend/internal/platform/logger"
	"github.com/yungbote/lumen-backend/internal/services"
)

type SessionHandler struct {
	log      *logger.Logger
	registry *services.SessionRegistry
}

func NewSessionHandler(log *logger.Logger, registry *services.SessionRegistry) *SessionHandler {
	return &SessionHandler{log: log.With("handler", "SessionHandler"), registry: registry}
}

type createSessionRequest struct {
	Prompt    string `json:"prompt"`
	ModelHint string `json:"model_hint"`
}

type turnRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

type publishRequest struct {
	Caption string `json:"caption"`
}

// POST /api/sessions
// Without a prompt the new session is returned as JSON; with one, the first
// turn is streamed the same way as POST /sessions/:id/turns.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	var req createSessionRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	ctrl, release, err := h.registry.Create(c.Request.Context(), userID, req.ModelHint)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	defer release()
	if req.Prompt == "" {
		response.RespondCreated(c, gin.H{"session": ctrl.State()})
		return
	}
	h.streamTurn(c, ctrl, req.Prompt)
}

// GET /api/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	ctrl, release, ok := h.open(c)
	if !ok {
		return
	}
	defer release()
	response.RespondOK(c, gin.H{"session": ctrl.State()})
}

// POST /api/sessions/:id/turns
func (h *SessionHandler) StartTurn(c *gin.Context) {
	var req turnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	ctrl, release, ok := h.open(c)
	if !ok {
		return
	}
	defer release()
	h.streamTurn(c, ctrl, req.Prompt)
}

// streamTurn relays frames as SSE. Rejections that happen before the first
// frame are plain JSON errors; later failures arrive as an "error" event.
func (h *SessionHandler) streamTurn(c *gin.Context, ctrl *services.SessionController, prompt string) {
	streaming := false
	state, err := ctrl.StartTurn(c.Request.Context(), prompt, func(f stream.Frame) error {
		if !streaming {
			startSSE(c)
			streaming = true
		}
		return writeSSE(c, "frame", f)
	})
	if err != nil {
		if !streaming {
			response.RespondServiceError(c, err)
			return
		}
		ae := response.FromService(err)
		_ = writeSSE(c, "error", response.APIError{Message: ae.Error(), Code: ae.Code})
		return
	}
	if !streaming {
		startSSE(c)
	}
	_ = writeSSE(c, "state", state)
}

// POST /api/sessions/:id/persist
func (h *SessionHandler) Persist(c *gin.Context) {
	ctrl, release, ok := h.open(c)
	if !ok {
		return
	}
	defer release()
	state, err := ctrl.Persist(c.Request.Context())
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"session": state})
}

// POST /api/sessions/:id/publish
func (h *SessionHandler) Publish(c *gin.Context) {
	var req publishRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	ctrl, release, ok := h.open(c)
	if !ok {
		return
	}
	defer release()
	post, err := ctrl.Publish(c.Request.Context(), req.Caption)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"post": post})
}

func (h *SessionHandler) open(c *gin.Context) (*services.SessionController, func(), bool) {
	userID, ok := requestUser(c)
	if !ok {
		return nil, nil, false
	}
	sessionID, ok := pathID(c, "id", "invalid_session_id")
	if !ok {
		return nil, nil, false
	}
	ctrl, release, err := h.registry.Open(c.Request.Context(), userID, sessionID)
	if err != nil {
		response.RespondServiceError(c, err)
		return nil, nil, false
	}
	return ctrl, release, true
}
