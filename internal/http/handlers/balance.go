package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/lumen-backend/internal/http/response"
	"github.com/yungbote/lumen-backend/internal/services"
)

type BalanceHandler struct {
	ledger services.LedgerService
}

func NewBalanceHandler(ledger services.LedgerService) *BalanceHandler {
	return &BalanceHandler{ledger: ledger}
}

// GET /api/balance
func (h *BalanceHandler) GetBalance(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	bal, err := h.ledger.GetBalance(c.Request.Context(), userID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"balance": bal})
}
