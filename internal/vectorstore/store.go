// Package vectorstore persists document chunks and their embeddings, one
// collection per linked folder.
package vectorstore

import (
	"context"
	"fmt"
	"strings"

	"drivemind/internal/models"
)

const manifestPrefix = "_manifest_"

// ChunkMetadata travels with every stored chunk and comes back on search
// hits. Page fields are only set for paged documents.
type ChunkMetadata struct {
	FileID      string `json:"file_id"`
	FileName    string `json:"file_name"`
	FilePath    string `json:"file_path"`
	MimeType    string `json:"mime_type"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks,omitempty"`
	PageNumber  int    `json:"page_number,omitempty"`
	TotalPages  int    `json:"total_pages,omitempty"`
	ChunkInPage int    `json:"chunk_in_page,omitempty"`
}

// Document is a chunk ready to be stored.
type Document struct {
	ID       string
	Content  string
	Metadata ChunkMetadata
}

// SearchHit is one search result. Lower Distance means closer.
type SearchHit struct {
	Content  string
	Metadata ChunkMetadata
	Distance float32
}

// Store is the per-folder chunk index. Implementations embed content
// themselves; callers only deal in text.
type Store interface {
	// Upsert writes chunks into the folder's collection, creating it on
	// first use. Re-upserting an id overwrites the previous chunk.
	Upsert(ctx context.Context, userID, folderID string, docs []Document) error
	// Search returns the topK chunks closest to the query. Manifest records
	// never appear in results. A non-empty fileName restricts hits to that
	// file.
	Search(ctx context.Context, userID, folderID, query string, topK int, fileName string) ([]SearchHit, error)
	// StoreFileManifest records the folder's file listing as a special
	// manifest entry in the same collection.
	StoreFileManifest(ctx context.Context, userID, folderID string, files []models.FileDescriptor) error
	// GetFileManifest returns the stored listing, or an empty slice when no
	// manifest exists.
	GetFileManifest(ctx context.Context, userID, folderID string) ([]models.FileDescriptor, error)
	// DropCollection removes the folder's collection entirely. Dropping a
	// missing collection is not an error.
	DropCollection(ctx context.Context, userID, folderID string) error
}

// CollectionName derives the collection identifier for a user's folder.
// Hyphens are not valid in collection names, so UUIDs get underscored.
func CollectionName(userID, folderID string) string {
	return strings.ReplaceAll(fmt.Sprintf("user_%s_folder_%s", userID, folderID), "-", "_")
}

func manifestID(folderID string) string {
	return manifestPrefix + folderID
}

// ManifestSummary renders a short natural-language description of the
// folder contents. It doubles as the embedded text of the manifest record,
// so a question like "what files are in here" can surface it.
func ManifestSummary(files []models.FileDescriptor) string {
	names := make([]string, 0, 50)
	for i, f := range files {
		if i == 50 {
			break
		}
		names = append(names, f.Name)
	}
	summary := fmt.Sprintf("This folder contains %d files: %s", len(files), strings.Join(names, ", "))
	if len(files) > 50 {
		summary += fmt.Sprintf(" and %d more files.", len(files)-50)
	}
	return summary
}
