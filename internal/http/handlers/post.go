package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/lumen-backend/internal/domain/content"
	"github.com/yungbote/lumen-backend/internal/http/response"
	"github.com/yungbote/lumen-backend/internal/platform/logger"
	"github.com/yungbote/lumen-backend/internal/services"
)

type PostHandler struct {
	log          *logger.Logger
	posts        services.PostService
	interactions services.InteractionService
}

func NewPostHandler(log *logger.Logger, posts services.PostService, interactions services.InteractionService) *PostHandler {
	return &PostHandler{log: log.With("handler", "PostHandler"), posts: posts, interactions: interactions}
}

type interactionRequest struct {
	Active *bool `json:"active" binding:"required"`
}

type updatePostRequest struct {
	Caption string `json:"caption"`
}

// GET /api/posts/:id
func (h *PostHandler) GetPost(c *gin.Context) {
	postID, ok := pathID(c, "id", "invalid_post_id")
	if !ok {
		return
	}
	post, err := h.posts.Get(c.Request.Context(), postID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"post": post})
}

// PUT /api/posts/:id/like and /api/posts/:id/save
// The body carries the desired state, so replays are harmless.
func (h *PostHandler) SetInteraction(kind content.InteractionKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requestUser(c)
		if !ok {
			return
		}
		postID, ok := pathID(c, "id", "invalid_post_id")
		if !ok {
			return
		}
		var req interactionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
		post, err := h.posts.Get(c.Request.Context(), postID)
		if err != nil {
			response.RespondServiceError(c, err)
			return
		}
		ref := content.Ref{Kind: post.RefKind(), ID: post.ID}
		change, err := h.interactions.Set(c.Request.Context(), userID, ref, kind, *req.Active)
		if err != nil {
			response.RespondServiceError(c, err)
			return
		}
		response.RespondOK(c, change)
	}
}

// PATCH /api/posts/:id
func (h *PostHandler) UpdatePost(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	postID, ok := pathID(c, "id", "invalid_post_id")
	if !ok {
		return
	}
	var req updatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	post, err := h.posts.UpdateCaption(c.Request.Context(), userID, postID, req.Caption)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"post": post})
}

// DELETE /api/posts/:id
func (h *PostHandler) DeletePost(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	postID, ok := pathID(c, "id", "invalid_post_id")
	if !ok {
		return
	}
	if err := h.posts.Delete(c.Request.Context(), userID, postID); err != nil {
		response.RespondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
