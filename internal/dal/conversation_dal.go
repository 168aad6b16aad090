package dal

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"drivemind/internal/models"
)

// ConversationDAL provides data access methods for conversations and their
// messages.
type ConversationDAL struct {
	db *gorm.DB
}

func NewConversationDAL(db *gorm.DB) *ConversationDAL {
	return &ConversationDAL{db: db}
}

// Create inserts a new conversation row.
func (dal *ConversationDAL) Create(ctx context.Context, conv *models.Conversation) error {
	return dal.db.WithContext(ctx).Create(conv).Error
}

// GetForUser fetches a conversation with its messages, ordered oldest
// first, and checks ownership.
func (dal *ConversationDAL) GetForUser(ctx context.Context, userID, id string) (*models.Conversation, error) {
	var conv models.Conversation
	result := dal.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("id = ? AND user_id = ?", id, userID).
		First(&conv)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &conv, nil
}

// List returns a user's conversations with their messages, newest first.
// A non-empty folderID narrows the result to one folder.
func (dal *ConversationDAL) List(ctx context.Context, userID, folderID string) ([]*models.Conversation, error) {
	query := dal.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("user_id = ?", userID).
		Order("updated_at DESC")
	if folderID != "" {
		query = query.Where("folder_id = ?", folderID)
	}
	var convs []*models.Conversation
	result := query.Find(&convs)
	if result.Error != nil {
		return nil, result.Error
	}
	return convs, nil
}

// AppendMessage adds a message to a conversation and bumps its updated_at.
func (dal *ConversationDAL) AppendMessage(ctx context.Context, msg *models.Message) error {
	return dal.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).
			Where("id = ?", msg.ConversationID).
			Update("updated_at", msg.CreatedAt).Error
	})
}

// DeleteByFolder removes all conversations (and their messages, via the
// cascade) a user had about one folder.
func (dal *ConversationDAL) DeleteByFolder(ctx context.Context, userID, folderID string) error {
	return dal.db.WithContext(ctx).
		Where("user_id = ? AND folder_id = ?", userID, folderID).
		Delete(&models.Conversation{}).Error
}
