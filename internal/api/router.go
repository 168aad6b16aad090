package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetupRouter wires the handlers into a Gin engine.
func SetupRouter(h *Handler, jwtSecret string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authed := r.Group("/api")
	authed.Use(AuthMiddleware(jwtSecret))
	{
		driveGroup := authed.Group("/drive")
		{
			driveGroup.POST("/folders", h.LinkFolder)
			driveGroup.GET("/folders", h.ListFolders)
			driveGroup.GET("/folders/:id", h.GetFolder)
			driveGroup.POST("/folders/:id/reindex", h.ReindexFolder)
			driveGroup.DELETE("/folders/:id", h.DeleteFolder)
			driveGroup.GET("/folders/:id/files", h.ListFolderFiles)
			driveGroup.GET("/folders/:id/files/:fileID/view", h.ViewFile)
		}

		chat := authed.Group("/chat")
		{
			chat.POST("/send", h.SendMessage)
			chat.POST("/send/stream", h.SendMessageStream)
			chat.GET("/conversations", h.ListConversations)
			chat.GET("/conversations/:id", h.GetConversation)
		}
	}

	return r
}
