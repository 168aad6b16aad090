package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"drivemind/internal/agent"
	"drivemind/internal/dal"
	"drivemind/internal/models"
)

// maxTitleLength bounds the conversation title derived from the first
// message.
const maxTitleLength = 50

// sendRequest is one chat turn. An empty ConversationID starts a new
// conversation.
type sendRequest struct {
	FolderID       string `json:"folder_id" binding:"required"`
	Message        string `json:"message" binding:"required"`
	ConversationID string `json:"conversation_id"`
}

// chatContext is the resolved state a chat turn runs against: the folder,
// the conversation (created on demand) and the history preceding the new
// user message.
type chatContext struct {
	folder       *models.Folder
	conversation *models.Conversation
	history      []models.ChatTurn
	request      agent.Request
}

// prepareChat validates a send request, persists the user's message and
// assembles the agent request. It writes the error response itself; the
// boolean reports success.
func (h *Handler) prepareChat(c *gin.Context) (*chatContext, bool) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	userID, _ := currentUser(c)
	ctx := c.Request.Context()

	folder, err := h.folders.GetForUser(ctx, userID, req.FolderID)
	if err == dal.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "Folder not found"})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	if folder.Status != models.FolderStatusReady {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Folder is not ready. Status: %s", folder.Status)})
		return nil, false
	}

	var conversation *models.Conversation
	if req.ConversationID != "" {
		conversation, err = h.conversations.GetForUser(ctx, userID, req.ConversationID)
		if err == dal.ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
			return nil, false
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return nil, false
		}
	} else {
		conversation = &models.Conversation{
			ID:       uuid.NewString(),
			UserID:   userID,
			FolderID: folder.ID,
			Title:    conversationTitle(req.Message),
		}
		if err := h.conversations.Create(ctx, conversation); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return nil, false
		}
	}

	// History is everything said before this turn; the new user message is
	// passed to the agent separately.
	history := make([]models.ChatTurn, 0, len(conversation.Messages))
	for _, m := range conversation.Messages {
		history = append(history, models.ChatTurn{Role: string(m.Role), Content: m.Content})
	}

	userMsg := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversation.ID,
		Role:           models.MessageRoleUser,
		Content:        req.Message,
		CreatedAt:      time.Now().UTC(),
	}
	if err := h.conversations.AppendMessage(ctx, userMsg); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}

	indexMode := models.IndexModeVectorStore
	if folder.IndexMode != nil {
		indexMode = *folder.IndexMode
	}
	return &chatContext{
		folder:       folder,
		conversation: conversation,
		history:      history,
		request: agent.Request{
			UserID:        userID,
			FolderID:      folder.ID,
			Message:       req.Message,
			History:       history,
			IndexMode:     indexMode,
			UploadedFiles: folder.UploadedFiles,
		},
	}, true
}

// conversationTitle derives a title from the opening message.
func conversationTitle(message string) string {
	runes := []rune(strings.TrimSpace(message))
	if len(runes) <= maxTitleLength {
		return string(runes)
	}
	return string(runes[:maxTitleLength]) + "..."
}

// SendMessage answers a chat turn and persists both sides of the exchange.
func (h *Handler) SendMessage(c *gin.Context) {
	chat, ok := h.prepareChat(c)
	if !ok {
		return
	}

	resp, err := h.agent.Chat(c.Request.Context(), chat.request)
	if err != nil {
		h.log.WithUser(chat.request.UserID).WithErr(err).Error("chat failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	assistantMsg := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: chat.conversation.ID,
		Role:           models.MessageRoleAssistant,
		Content:        resp.Content,
		Citations:      datatypes.JSONSlice[models.Citation](resp.Citations),
		CreatedAt:      time.Now().UTC(),
	}
	if err := h.conversations.AppendMessage(c.Request.Context(), assistantMsg); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversation_id": chat.conversation.ID,
		"message":         assistantMsg,
	})
}

// SendMessageStream answers a chat turn as server-sent events: a "start"
// event with the conversation ID, "content" events carrying answer
// fragments, then a terminal "done" event with the stored message ID and
// citations. Failures surface as an "error" event.
func (h *Handler) SendMessageStream(c *gin.Context) {
	chat, ok := h.prepareChat(c)
	if !ok {
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.SSEvent("start", gin.H{"conversation_id": chat.conversation.ID})
	c.Writer.Flush()

	var answer strings.Builder
	for ev := range h.agent.StreamChat(c.Request.Context(), chat.request) {
		switch {
		case ev.Err != nil:
			h.log.WithUser(chat.request.UserID).WithErr(ev.Err).Error("streaming chat failed")
			c.SSEvent("error", gin.H{"error": ev.Err.Error()})
			c.Writer.Flush()
			return
		case ev.Done:
			assistantMsg := &models.Message{
				ID:             uuid.NewString(),
				ConversationID: chat.conversation.ID,
				Role:           models.MessageRoleAssistant,
				Content:        answer.String(),
				Citations:      datatypes.JSONSlice[models.Citation](ev.Citations),
				CreatedAt:      time.Now().UTC(),
			}
			if err := h.conversations.AppendMessage(c.Request.Context(), assistantMsg); err != nil {
				c.SSEvent("error", gin.H{"error": err.Error()})
				c.Writer.Flush()
				return
			}
			citations := ev.Citations
			if citations == nil {
				citations = []models.Citation{}
			}
			c.SSEvent("done", gin.H{
				"message_id": assistantMsg.ID,
				"citations":  citations,
			})
			c.Writer.Flush()
		default:
			if ev.Text == "" {
				continue
			}
			answer.WriteString(ev.Text)
			c.SSEvent("content", gin.H{"text": ev.Text})
			c.Writer.Flush()
		}
	}
}

// ListConversations returns the user's conversations with their messages,
// most recently active first. A folder_id query narrows to one folder.
func (h *Handler) ListConversations(c *gin.Context) {
	userID, _ := currentUser(c)
	convs, err := h.conversations.List(c.Request.Context(), userID, c.Query("folder_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, convs)
}

// GetConversation returns one conversation with its messages.
func (h *Handler) GetConversation(c *gin.Context) {
	userID, _ := currentUser(c)
	conv, err := h.conversations.GetForUser(c.Request.Context(), userID, c.Param("id"))
	if err == dal.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, conv)
}
