package ingest

import (
	"testing"

	"drivemind/internal/models"
)

func filesOf(count int, size int64) []models.FileDescriptor {
	files := make([]models.FileDescriptor, count)
	for i := range files {
		files[i] = models.FileDescriptor{ID: "f", Size: size}
	}
	return files
}

func TestUseFastPathFileCountBoundary(t *testing.T) {
	if !UseFastPath(filesOf(MaxFilesForFastPath, 1024)) {
		t.Errorf("exactly %d files should qualify", MaxFilesForFastPath)
	}
	if UseFastPath(filesOf(MaxFilesForFastPath+1, 1024)) {
		t.Errorf("%d files should not qualify", MaxFilesForFastPath+1)
	}
}

func TestUseFastPathTotalSizeBoundary(t *testing.T) {
	// 50 files of exactly 2MB each: total is exactly the limit.
	if !UseFastPath(filesOf(50, MaxTotalSizeBytes/50)) {
		t.Errorf("total of exactly %d bytes should qualify", MaxTotalSizeBytes)
	}
	files := filesOf(50, MaxTotalSizeBytes/50)
	files[0].Size++
	if UseFastPath(files) {
		t.Errorf("total one byte over the limit should not qualify")
	}
}

func TestUseFastPathPerFileBoundary(t *testing.T) {
	if !UseFastPath(filesOf(1, MaxFileSizeBytes)) {
		t.Errorf("a file of exactly %d bytes should qualify", MaxFileSizeBytes)
	}
	if UseFastPath(filesOf(1, MaxFileSizeBytes+1)) {
		t.Errorf("a file over the per-file limit should not qualify")
	}
}

func TestUseFastPathEmpty(t *testing.T) {
	if !UseFastPath(nil) {
		t.Errorf("an empty listing trivially qualifies")
	}
}

func TestUseFastPathSingleIsStrict(t *testing.T) {
	if !UseFastPathSingle(MaxFileSizeBytes - 1) {
		t.Errorf("a file just under the limit should qualify")
	}
	if UseFastPathSingle(MaxFileSizeBytes) {
		t.Errorf("the single-file limit is strict")
	}
}
