package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"drivemind/internal/dal"
	"drivemind/internal/drive"
	"drivemind/internal/ingest"
	"drivemind/internal/models"
)

// linkFolderRequest carries the drive URL to link.
type linkFolderRequest struct {
	FolderURL string `json:"folder_url" binding:"required"`
}

// folderResponse is the API view of a linked folder.
type folderResponse struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	Status    models.FolderStatus `json:"status"`
	FileCount int                 `json:"file_count"`
	IndexMode *models.IndexMode   `json:"index_mode,omitempty"`
	IndexedAt *time.Time          `json:"indexed_at,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
}

func newFolderResponse(f *models.Folder) folderResponse {
	return folderResponse{
		ID:        f.ID,
		Name:      f.Name,
		Status:    f.Status,
		FileCount: f.FileCount,
		IndexMode: f.IndexMode,
		IndexedAt: f.IndexedAt,
		CreatedAt: f.CreatedAt,
	}
}

// LinkFolder links a drive folder (or single file) to the calling user and
// queues its ingestion. Linking the same drive ID twice is idempotent; a
// failed folder is re-queued instead of duplicated.
func (h *Handler) LinkFolder(c *gin.Context) {
	var req linkFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID, refreshToken := currentUser(c)

	driveID, kind, err := drive.ParseLink(req.FolderURL)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid Google Drive URL"})
		return
	}

	existing, err := h.folders.GetByDriveID(c.Request.Context(), userID, driveID)
	if err == nil {
		if existing.Status == models.FolderStatusFailed {
			existing.Status = models.FolderStatusPending
			if err := h.folders.Update(c.Request.Context(), existing); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			if err := h.publishIngestion(c, existing, userID, refreshToken, kind); err != nil {
				return
			}
		}
		c.JSON(http.StatusOK, newFolderResponse(existing))
		return
	}
	if err != dal.ErrNotFound {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var metadata models.FileDescriptor
	if kind == drive.LinkFolder {
		metadata, err = h.drive.GetFolderMetadata(c.Request.Context(), refreshToken, driveID)
	} else {
		metadata, err = h.drive.GetFileMetadata(c.Request.Context(), refreshToken, driveID)
	}
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": fmt.Sprintf("failed to fetch drive metadata: %v", err)})
		return
	}

	folder := &models.Folder{
		ID:            uuid.NewString(),
		UserID:        userID,
		DriveFolderID: driveID,
		Name:          metadata.Name,
		Status:        models.FolderStatusPending,
	}
	if err := h.folders.Create(c.Request.Context(), folder); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.publishIngestion(c, folder, userID, refreshToken, kind); err != nil {
		return
	}

	c.JSON(http.StatusOK, newFolderResponse(folder))
}

// publishIngestion queues an ingestion job for the folder. It writes the
// error response itself so callers can just return on failure.
func (h *Handler) publishIngestion(c *gin.Context, folder *models.Folder, userID, refreshToken string, kind drive.LinkKind) error {
	job := ingest.Job{
		FolderID:     folder.ID,
		UserID:       userID,
		RefreshToken: refreshToken,
		Kind:         ingest.JobKindFolder,
	}
	if kind == drive.LinkFile {
		job.Kind = ingest.JobKindFile
		job.DriveFileID = folder.DriveFolderID
	}
	if err := h.queue.Publish(c.Request.Context(), job); err != nil {
		h.log.WithFolder(folder.ID).WithErr(err).Error("failed to queue ingestion job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue ingestion"})
		return err
	}
	return nil
}

// ListFolders returns the calling user's linked folders.
func (h *Handler) ListFolders(c *gin.Context) {
	userID, _ := currentUser(c)
	folders, err := h.folders.ListByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	resp := make([]folderResponse, 0, len(folders))
	for _, f := range folders {
		resp = append(resp, newFolderResponse(f))
	}
	c.JSON(http.StatusOK, resp)
}

// GetFolder returns one linked folder.
func (h *Handler) GetFolder(c *gin.Context) {
	userID, _ := currentUser(c)
	folder, err := h.folders.GetForUser(c.Request.Context(), userID, c.Param("id"))
	if err == dal.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "Folder not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, newFolderResponse(folder))
}

// ReindexFolder drops the folder's index and queues a fresh ingestion.
func (h *Handler) ReindexFolder(c *gin.Context) {
	userID, refreshToken := currentUser(c)
	folder, err := h.folders.GetForUser(c.Request.Context(), userID, c.Param("id"))
	if err == dal.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "Folder not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.DropCollection(c.Request.Context(), userID, folder.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	folder.ResetIndexState()
	if err := h.folders.Update(c.Request.Context(), folder); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// The linked drive ID may point at a folder or a single file; the
	// current metadata decides which ingestion kind to queue.
	kind := drive.LinkFolder
	metadata, err := h.drive.GetFileMetadata(c.Request.Context(), refreshToken, folder.DriveFolderID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": fmt.Sprintf("failed to fetch drive metadata: %v", err)})
		return
	}
	if metadata.MimeType != drive.MimeFolder {
		kind = drive.LinkFile
	}
	if err := h.publishIngestion(c, folder, userID, refreshToken, kind); err != nil {
		return
	}

	c.JSON(http.StatusOK, newFolderResponse(folder))
}

// DeleteFolder removes a folder, its conversations and its index.
func (h *Handler) DeleteFolder(c *gin.Context) {
	userID, _ := currentUser(c)
	folderID := c.Param("id")
	folder, err := h.folders.GetForUser(c.Request.Context(), userID, folderID)
	if err == dal.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "Folder not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := h.conversations.DeleteByFolder(c.Request.Context(), userID, folder.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.store.DropCollection(c.Request.Context(), userID, folder.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.folders.Delete(c.Request.Context(), userID, folder.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// ListFolderFiles returns the indexed file listing from the folder's
// manifest.
func (h *Handler) ListFolderFiles(c *gin.Context) {
	userID, _ := currentUser(c)
	folder, err := h.folders.GetForUser(c.Request.Context(), userID, c.Param("id"))
	if err == dal.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "Folder not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	manifest, err := h.store.GetFileManifest(c.Request.Context(), userID, folder.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, manifest)
}

// ViewFile proxies a file download from drive so the caller can preview the
// original bytes. Workspace-native files come back as their Office exports.
func (h *Handler) ViewFile(c *gin.Context) {
	userID, refreshToken := currentUser(c)
	_, err := h.folders.GetForUser(c.Request.Context(), userID, c.Param("id"))
	if err == dal.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "Folder not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	fileID := c.Param("fileID")
	metadata, err := h.drive.GetFileMetadata(c.Request.Context(), refreshToken, fileID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to retrieve file: %v", err)})
		return
	}
	content, err := h.drive.Download(c.Request.Context(), refreshToken, fileID, metadata.MimeType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to retrieve file: %v", err)})
		return
	}

	viewMime := metadata.MimeType
	if exported, ok := drive.ExportMimeTypes[viewMime]; ok {
		viewMime = exported
	}
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", metadata.Name))
	c.Data(http.StatusOK, viewMime, content)
}
