package api

import (
	"net/http"

	"mission_rewards/internal/service"
	"mission_rewards/pkg/auth"

	"github.com/gin-gonic/gin"
)

type walletRoutes struct {
	ws service.WalletServiceI
}

func NewWalletRoutes(handler *gin.RouterGroup, ws service.WalletServiceI, a *auth.TelegramAuth) {
	h := &walletRoutes{ws: ws}
	handler.GET("/wallet", a.TelegramAuthMiddleware(), h.GetWallet)
}

type walletResponse struct {
	UserID        int64                 `json:"user_id"`
	Balance       int64                 `json:"balance"`
	LockedBalance int64                 `json:"locked_balance"`
	Currency      string                `json:"currency"`
	Transactions  []transactionResponse `json:"transactions"`
}

func (h *walletRoutes) GetWallet(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	w, txns, err := h.ws.GetWallet(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := walletResponse{
		UserID:        w.UserID,
		Balance:       w.Balance,
		LockedBalance: w.LockedBalance,
		Currency:      w.Currency,
		Transactions:  make([]transactionResponse, len(txns)),
	}
	for i, t := range txns {
		resp.Transactions[i] = newTransactionResponse(t)
	}
	c.JSON(http.StatusOK, resp)
}
