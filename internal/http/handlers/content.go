package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/lumen-backend/internal/domain/content"
	"github.com/yungbote/lumen-backend/internal/http/response"
	"github.com/yungbote/lumen-backend/internal/services"
)

type ContentHandler struct {
	content services.ContentService
}

func NewContentHandler(content services.ContentService) *ContentHandler {
	return &ContentHandler{content: content}
}

// GET /api/content/:kind/:id
func (h *ContentHandler) GetContent(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	ref, err := content.ParseRef(c.Param("kind"), c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_content_ref", err)
		return
	}
	card, err := h.content.Resolve(c.Request.Context(), userID, ref)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"content": card})
}
