package app_routers

import (
	"Kaupa/internal/auth"
	"Kaupa/internal/configuration"

	"github.com/gin-gonic/gin"
)

// RegisterChatRoutes mounts the authenticated REST surface for
// conversations.
func RegisterChatRoutes(engine *gin.Engine, c *configuration.Container) {
	api := engine.Group("/api/chat")
	api.Use(auth.Middleware(c.Tokens))

	api.POST("/conversations", c.ChatHandler.CreateConversation)
	api.GET("/conversations", c.ChatHandler.ListConversations)
	api.GET("/conversations/:id/messages", c.ChatHandler.ListMessages)
	api.POST("/conversations/:id/messages", c.ChatHandler.AppendMessage)
	api.POST("/conversations/:id/join", c.ChatHandler.JoinConversation)
	api.POST("/conversations/:id/read", c.ChatHandler.MarkRead)
	api.PATCH("/conversations/:id/status", c.ChatHandler.UpdateStatus)
	api.GET("/unread-count", c.ChatHandler.UnreadCount)
}
