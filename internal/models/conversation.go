package models

import (
	"time"

	"gorm.io/datatypes"
)

// MessageRole distinguishes user turns from assistant turns.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Conversation groups the messages a user exchanged about one folder.
type Conversation struct {
	ID        string    `gorm:"type:char(36);primaryKey" json:"id"`
	UserID    string    `gorm:"type:char(36);index;not null" json:"user_id"`
	FolderID  string    `gorm:"type:char(36);index;not null" json:"folder_id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Messages []Message `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"messages,omitempty"`
}

// Message is a single turn inside a conversation. Citations are stored for
// assistant turns that referenced source files.
type Message struct {
	ID             string                        `gorm:"type:char(36);primaryKey" json:"id"`
	ConversationID string                        `gorm:"type:char(36);index;not null" json:"conversation_id"`
	Role           MessageRole                   `gorm:"size:16;not null" json:"role"`
	Content        string                        `gorm:"type:text;not null" json:"content"`
	Citations      datatypes.JSONSlice[Citation] `json:"citations,omitempty"`
	CreatedAt      time.Time                     `json:"created_at"`
}
