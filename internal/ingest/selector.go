package ingest

import "drivemind/internal/models"

// Fast-path limits. Folders within all three fit entirely into the native
// file store; anything bigger goes through extraction and the vector store.
const (
	MaxFilesForFastPath = 50
	MaxTotalSizeBytes   = 100 * 1024 * 1024
	MaxFileSizeBytes    = 10 * 1024 * 1024
)

// UseFastPath reports whether a folder listing qualifies for the native
// file upload path.
func UseFastPath(files []models.FileDescriptor) bool {
	if len(files) > MaxFilesForFastPath {
		return false
	}

	var total int64
	for _, f := range files {
		if f.Size > MaxFileSizeBytes {
			return false
		}
		total += f.Size
	}
	return total <= MaxTotalSizeBytes
}

// UseFastPathSingle is the single-file variant: only the per-file limit
// applies, and it is strict.
func UseFastPathSingle(size int64) bool {
	return size < MaxFileSizeBytes
}
