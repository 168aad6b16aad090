package models

import (
	"time"

	"gorm.io/datatypes"
)

// FolderStatus is the lifecycle state of a linked drive folder. A folder has
// exactly one active status at a time.
type FolderStatus string

const (
	FolderStatusPending  FolderStatus = "pending"
	FolderStatusIndexing FolderStatus = "indexing"
	FolderStatusReady    FolderStatus = "ready"
	FolderStatusFailed   FolderStatus = "failed"
)

// IndexMode records which ingestion path a folder was indexed through. It is
// nil until ingestion completes and fixed once it succeeds.
type IndexMode string

const (
	// IndexModeNativeFiles means the folder's files were uploaded to the
	// native-file chat store and are queried without chunking.
	IndexModeNativeFiles IndexMode = "native_files"
	// IndexModeVectorStore means the folder's files were chunked, embedded
	// and stored in a per-folder vector collection.
	IndexModeVectorStore IndexMode = "vector_store"
)

// Folder represents a linked drive folder (or single file) owned by a user.
type Folder struct {
	ID            string       `gorm:"type:char(36);primaryKey" json:"id"`
	UserID        string       `gorm:"type:char(36);index;not null" json:"user_id"`
	DriveFolderID string       `gorm:"size:255;index;not null" json:"drive_folder_id"`
	Name          string       `gorm:"size:255;not null" json:"name"`
	Status        FolderStatus `gorm:"size:32;not null" json:"status"`
	IndexMode     *IndexMode   `gorm:"size:32" json:"index_mode,omitempty"`
	FileCount     int          `gorm:"not null;default:0" json:"file_count"`
	IndexedAt     *time.Time   `json:"indexed_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`

	// UploadedFiles is populated only when IndexMode is native_files and
	// holds the ordered upload descriptors for the fast path.
	UploadedFiles datatypes.JSONSlice[UploadedFile] `json:"uploaded_files,omitempty"`
}

// ResetIndexState clears every field derived by ingestion so the folder can
// be re-ingested from scratch.
func (f *Folder) ResetIndexState() {
	f.Status = FolderStatusPending
	f.IndexMode = nil
	f.FileCount = 0
	f.IndexedAt = nil
	f.UploadedFiles = nil
}
