package handler

import (
	"net/http"

	"Kaupa/internal/auth"
	"Kaupa/internal/hub"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WsHandler authenticates the websocket handshake and hands the connection
// to the hub. Handshakes without a valid token are rejected before the
// upgrade.
type WsHandler struct {
	hub    *hub.Hub
	tokens *auth.TokenManager
	logger *zap.Logger
}

func NewWsHandler(h *hub.Hub, tokens *auth.TokenManager, logger *zap.Logger) *WsHandler {
	return &WsHandler{
		hub:    h,
		tokens: tokens,
		logger: logger,
	}
}

func (h *WsHandler) Serve(c *gin.Context) {
	tokenStr := auth.ExtractToken(c.Request)
	if tokenStr == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    "unauthorized",
			"message": "missing access token",
		})
		return
	}

	identity, err := h.tokens.VerifyToken(tokenStr)
	if err != nil {
		h.logger.Debug("websocket handshake rejected", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    "unauthorized",
			"message": "invalid access token",
		})
		return
	}

	h.hub.ServeWS(c.Writer, c.Request, identity)
}
