// Package api exposes the HTTP surface: folder linking, ingestion control
// and citations-backed chat.
package api

import (
	"context"

	"drivemind/internal/agent"
	"drivemind/internal/ingest"
	"drivemind/internal/models"
	"drivemind/internal/vectorstore"
	"drivemind/pkg/logger"
)

// FolderStore is the folder persistence surface the handlers need.
type FolderStore interface {
	Create(ctx context.Context, folder *models.Folder) error
	GetForUser(ctx context.Context, userID, id string) (*models.Folder, error)
	GetByDriveID(ctx context.Context, userID, driveFolderID string) (*models.Folder, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Folder, error)
	Update(ctx context.Context, folder *models.Folder) error
	Delete(ctx context.Context, userID, id string) error
}

// ConversationStore is the conversation persistence surface the handlers need.
type ConversationStore interface {
	Create(ctx context.Context, conv *models.Conversation) error
	GetForUser(ctx context.Context, userID, id string) (*models.Conversation, error)
	List(ctx context.Context, userID, folderID string) ([]*models.Conversation, error)
	AppendMessage(ctx context.Context, msg *models.Message) error
	DeleteByFolder(ctx context.Context, userID, folderID string) error
}

// DriveGateway resolves drive metadata and file content on behalf of a user.
type DriveGateway interface {
	GetFolderMetadata(ctx context.Context, refreshToken, folderID string) (models.FileDescriptor, error)
	GetFileMetadata(ctx context.Context, refreshToken, fileID string) (models.FileDescriptor, error)
	Download(ctx context.Context, refreshToken, fileID, mimeType string) ([]byte, error)
}

// ChatAgent answers chat turns against an indexed folder.
type ChatAgent interface {
	Chat(ctx context.Context, req agent.Request) (agent.Response, error)
	StreamChat(ctx context.Context, req agent.Request) <-chan agent.Event
}

// JobPublisher enqueues ingestion jobs.
type JobPublisher interface {
	Publish(ctx context.Context, job ingest.Job) error
}

// Handler carries the dependencies shared by all endpoint handlers.
type Handler struct {
	folders       FolderStore
	conversations ConversationStore
	store         vectorstore.Store
	drive         DriveGateway
	agent         ChatAgent
	queue         JobPublisher
	log           *logger.Logger
}

// NewHandler creates a Handler with the given dependencies.
func NewHandler(folders FolderStore, conversations ConversationStore, store vectorstore.Store, drive DriveGateway, chatAgent ChatAgent, queue JobPublisher) *Handler {
	return &Handler{
		folders:       folders,
		conversations: conversations,
		store:         store,
		drive:         drive,
		agent:         chatAgent,
		queue:         queue,
		log:           logger.New("api"),
	}
}
