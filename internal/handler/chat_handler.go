package handler

import (
	"errors"
	"net/http"
	"strconv"

	"Kaupa/internal/auth"
	"Kaupa/internal/errs"
	"Kaupa/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ChatHandler exposes the REST surface over conversations: clients catch up
// over HTTP, live updates ride the socket.
type ChatHandler struct {
	chat     *service.ChatService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewChatHandler(chat *service.ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		chat:     chat,
		validate: validator.New(),
		logger:   logger,
	}
}

// CreateConversation handles POST /conversations.
func (h *ChatHandler) CreateConversation(c *gin.Context) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		unauthorized(c)
		return
	}

	var in service.CreateConversationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		writeError(c, errs.ErrValidation)
		return
	}
	if err := h.validate.Struct(in); err != nil {
		writeError(c, errs.ErrValidation)
		return
	}

	conv, err := h.chat.CreateConversation(c.Request.Context(), identity, in)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"conversation": conv})
}

// ListConversations handles GET /conversations?status=&page=.
func (h *ChatHandler) ListConversations(c *gin.Context) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		unauthorized(c)
		return
	}

	result, err := h.chat.ListConversations(
		c.Request.Context(),
		identity,
		c.Query("status"),
		pageParam(c),
	)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversations": result.Data,
		"page":          result.Page,
		"totalPages":    result.TotalPages,
		"total":         result.Total,
	})
}

// ListMessages handles GET /conversations/:id/messages?page=. Fetching a
// page also marks the reader's unread messages read.
func (h *ChatHandler) ListMessages(c *gin.Context) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		unauthorized(c)
		return
	}

	result, err := h.chat.ListMessages(
		c.Request.Context(),
		identity,
		c.Param("id"),
		pageParam(c),
	)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages":   result.Data,
		"page":       result.Page,
		"totalPages": result.TotalPages,
		"total":      result.Total,
	})
}

// AppendMessage handles POST /conversations/:id/messages.
func (h *ChatHandler) AppendMessage(c *gin.Context) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		unauthorized(c)
		return
	}

	var in service.AppendMessageInput
	if err := c.ShouldBindJSON(&in); err != nil {
		writeError(c, errs.ErrValidation)
		return
	}
	if err := h.validate.Struct(in); err != nil {
		writeError(c, errs.ErrValidation)
		return
	}

	msg, err := h.chat.AppendMessage(c.Request.Context(), identity, c.Param("id"), in)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// MarkRead handles POST /conversations/:id/read.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		unauthorized(c)
		return
	}

	messageIDs, err := h.chat.MarkRead(c.Request.Context(), identity, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messageIds": messageIDs})
}

// JoinConversation handles POST /conversations/:id/join. Staff only.
func (h *ChatHandler) JoinConversation(c *gin.Context) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		unauthorized(c)
		return
	}

	conv, err := h.chat.JoinConversation(c.Request.Context(), identity, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

// UpdateStatus handles PATCH /conversations/:id/status. Staff only; the
// service enforces the role gate and the transition rules.
func (h *ChatHandler) UpdateStatus(c *gin.Context) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		unauthorized(c)
		return
	}

	var in struct {
		Status string `json:"status" validate:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		writeError(c, errs.ErrValidation)
		return
	}
	if err := h.validate.Struct(in); err != nil {
		writeError(c, errs.ErrValidation)
		return
	}

	conv, err := h.chat.UpdateStatus(c.Request.Context(), identity, c.Param("id"), in.Status)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

// UnreadCount handles GET /unread-count.
func (h *ChatHandler) UnreadCount(c *gin.Context) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		unauthorized(c)
		return
	}

	count, err := h.chat.GetUnreadCount(c.Request.Context(), identity.UserID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"unreadCount": count})
}

// -----------------------------------------------------------------------------
// Error mapping
// -----------------------------------------------------------------------------

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, errs.ErrForbidden), errors.Is(err, errs.ErrUnauthorizedRoomJoin):
		status = http.StatusForbidden
	case errors.Is(err, errs.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errs.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"code":    errs.Code(err),
		"message": err.Error(),
	})
}

func unauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"code":    "unauthorized",
		"message": "authentication required",
	})
}

func pageParam(c *gin.Context) int64 {
	raw := c.Query("page")
	if raw == "" {
		return 1
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || parsed < 1 {
		return 1
	}
	return parsed
}
