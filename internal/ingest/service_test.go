package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"drivemind/internal/drive"
	"drivemind/internal/gemini"
	"drivemind/internal/models"
	"drivemind/internal/vectorstore"
)

type fakeFolderStore struct {
	mu      sync.Mutex
	folders map[string]*models.Folder
	updates []models.FolderStatus
}

func newFakeFolderStore(folders ...*models.Folder) *fakeFolderStore {
	s := &fakeFolderStore{folders: make(map[string]*models.Folder)}
	for _, f := range folders {
		s.folders[f.ID] = f
	}
	return s
}

func (s *fakeFolderStore) GetByID(_ context.Context, id string) (*models.Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.folders[id]
	if !ok {
		return nil, nil
	}
	copied := *f
	return &copied, nil
}

func (s *fakeFolderStore) Update(_ context.Context, folder *models.Folder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *folder
	s.folders[folder.ID] = &copied
	s.updates = append(s.updates, folder.Status)
	return nil
}

type fakeDrive struct {
	files    []models.FileDescriptor
	contents map[string][]byte
	listErr  error
}

func (d *fakeDrive) ListFolder(_ context.Context, _, _ string) ([]models.FileDescriptor, error) {
	return d.files, d.listErr
}

func (d *fakeDrive) GetFileMetadata(_ context.Context, _, fileID string) (models.FileDescriptor, error) {
	for _, f := range d.files {
		if f.ID == fileID {
			return f, nil
		}
	}
	return models.FileDescriptor{}, errors.New("file not found")
}

func (d *fakeDrive) Download(_ context.Context, _, fileID, _ string) ([]byte, error) {
	content, ok := d.contents[fileID]
	if !ok {
		return nil, errors.New("download failed")
	}
	return content, nil
}

func (d *fakeDrive) DownloadAll(_ context.Context, _ string, files []models.FileDescriptor) ([]drive.Download, error) {
	out := make([]drive.Download, len(files))
	for i, f := range files {
		out[i] = drive.Download{File: f, Content: d.contents[f.ID]}
	}
	return out, nil
}

// fakeUploader succeeds for every file except the ids listed in fail.
type fakeUploader struct {
	fail map[string]bool
}

func (u *fakeUploader) UploadAll(_ context.Context, payloads []gemini.FilePayload, _ int) []models.UploadedFile {
	var out []models.UploadedFile
	for _, p := range payloads {
		if p.Content == nil {
			continue
		}
		uploaded := models.UploadedFile{ID: p.File.ID, Name: p.File.Name, Path: p.File.Path, MimeType: p.File.MimeType}
		if !u.fail[p.File.ID] {
			uploaded.URI = "files/" + p.File.ID
		}
		out = append(out, uploaded)
	}
	return out
}

func textFiles(count int, size int) (*fakeDrive, []models.FileDescriptor) {
	files := make([]models.FileDescriptor, count)
	contents := make(map[string][]byte)
	for i := range files {
		id := fmt.Sprintf("file-%d", i)
		files[i] = models.FileDescriptor{
			ID:       id,
			Name:     fmt.Sprintf("doc-%d.txt", i),
			Path:     fmt.Sprintf("doc-%d.txt", i),
			MimeType: "text/plain",
			Size:     int64(size),
		}
		contents[id] = []byte(strings.Repeat("word ", size/5))
	}
	return &fakeDrive{files: files, contents: contents}, files
}

func testService(folders *fakeFolderStore, driveClient DriveClient, uploader Uploader, store vectorstore.Store) *Service {
	return NewService(folders, driveClient, uploader, store, Options{})
}

func pendingFolder() *models.Folder {
	return &models.Folder{
		ID:            "folder-1",
		UserID:        "user-1",
		DriveFolderID: "drive-1",
		Name:          "Docs",
		Status:        models.FolderStatusPending,
	}
}

func TestIngestFolderFastPath(t *testing.T) {
	driveClient, _ := textFiles(3, 500)
	folders := newFakeFolderStore(pendingFolder())
	store := vectorstore.NewMemoryStore()
	svc := testService(folders, driveClient, &fakeUploader{}, store)

	if err := svc.IngestFolder(context.Background(), "folder-1", "user-1", "tok"); err != nil {
		t.Fatalf("IngestFolder: %v", err)
	}

	folder, _ := folders.GetByID(context.Background(), "folder-1")
	if folder.Status != models.FolderStatusReady {
		t.Fatalf("status = %q, want ready", folder.Status)
	}
	if folder.IndexMode == nil || *folder.IndexMode != models.IndexModeNativeFiles {
		t.Errorf("index mode = %v, want native_files", folder.IndexMode)
	}
	if folder.FileCount != 3 || len(folder.UploadedFiles) != 3 {
		t.Errorf("file count = %d, uploaded = %d, want 3/3", folder.FileCount, len(folder.UploadedFiles))
	}
	if folder.IndexedAt == nil {
		t.Errorf("indexed_at not set")
	}

	manifest, _ := store.GetFileManifest(context.Background(), "user-1", "folder-1")
	if len(manifest) != 3 {
		t.Errorf("manifest has %d entries, want 3", len(manifest))
	}
}

func TestIngestFolderUploadRatioFallback(t *testing.T) {
	cases := []struct {
		failures int
		wantMode models.IndexMode
	}{
		{0, models.IndexModeNativeFiles},
		{2, models.IndexModeNativeFiles}, // 3/5 succeed, ratio 0.6
		{3, models.IndexModeVectorStore}, // 2/5 succeed, ratio 0.4
		{5, models.IndexModeVectorStore},
	}

	for _, c := range cases {
		driveClient, files := textFiles(5, 2000)
		fail := make(map[string]bool)
		for i := 0; i < c.failures; i++ {
			fail[files[i].ID] = true
		}

		folders := newFakeFolderStore(pendingFolder())
		store := vectorstore.NewMemoryStore()
		svc := testService(folders, driveClient, &fakeUploader{fail: fail}, store)

		if err := svc.IngestFolder(context.Background(), "folder-1", "user-1", "tok"); err != nil {
			t.Fatalf("failures=%d: IngestFolder: %v", c.failures, err)
		}
		folder, _ := folders.GetByID(context.Background(), "folder-1")
		if folder.IndexMode == nil || *folder.IndexMode != c.wantMode {
			t.Errorf("failures=%d: index mode = %v, want %v", c.failures, folder.IndexMode, c.wantMode)
		}
		if folder.Status != models.FolderStatusReady {
			t.Errorf("failures=%d: status = %q, want ready", c.failures, folder.Status)
		}
	}
}

func TestIngestFolderHalfRatioExactlySucceeds(t *testing.T) {
	// 2 of 4 uploads succeed: exactly the 0.5 threshold, which passes.
	driveClient, files := textFiles(4, 2000)
	fail := map[string]bool{files[0].ID: true, files[1].ID: true}

	folders := newFakeFolderStore(pendingFolder())
	svc := testService(folders, driveClient, &fakeUploader{fail: fail}, vectorstore.NewMemoryStore())

	if err := svc.IngestFolder(context.Background(), "folder-1", "user-1", "tok"); err != nil {
		t.Fatalf("IngestFolder: %v", err)
	}
	folder, _ := folders.GetByID(context.Background(), "folder-1")
	if folder.IndexMode == nil || *folder.IndexMode != models.IndexModeNativeFiles {
		t.Errorf("index mode = %v, want native_files at exactly half", folder.IndexMode)
	}
	if folder.FileCount != 2 {
		t.Errorf("file count = %d, want only the successful uploads", folder.FileCount)
	}
}

func TestIngestFolderRAGPath(t *testing.T) {
	// 60 files exceeds the fast-path file budget.
	driveClient, _ := textFiles(60, 1000)
	folders := newFakeFolderStore(pendingFolder())
	store := vectorstore.NewMemoryStore()
	svc := testService(folders, driveClient, &fakeUploader{}, store)

	if err := svc.IngestFolder(context.Background(), "folder-1", "user-1", "tok"); err != nil {
		t.Fatalf("IngestFolder: %v", err)
	}

	folder, _ := folders.GetByID(context.Background(), "folder-1")
	if folder.IndexMode == nil || *folder.IndexMode != models.IndexModeVectorStore {
		t.Fatalf("index mode = %v, want vector_store", folder.IndexMode)
	}
	if folder.FileCount != 60 {
		t.Errorf("file count = %d, want 60", folder.FileCount)
	}
	if len(folder.UploadedFiles) != 0 {
		t.Errorf("vector path must not record uploaded files")
	}

	manifest, _ := store.GetFileManifest(context.Background(), "user-1", "folder-1")
	if len(manifest) != 60 {
		t.Errorf("manifest has %d entries, want 60", len(manifest))
	}
	hits, err := store.Search(context.Background(), "user-1", "folder-1", "word", 5, "")
	if err != nil || len(hits) == 0 {
		t.Errorf("expected searchable chunks after ingestion, got %d (err %v)", len(hits), err)
	}
}

func TestIngestFolderEmpty(t *testing.T) {
	driveClient := &fakeDrive{}
	folders := newFakeFolderStore(pendingFolder())
	svc := testService(folders, driveClient, &fakeUploader{}, vectorstore.NewMemoryStore())

	if err := svc.IngestFolder(context.Background(), "folder-1", "user-1", "tok"); err != nil {
		t.Fatalf("IngestFolder: %v", err)
	}
	folder, _ := folders.GetByID(context.Background(), "folder-1")
	if folder.Status != models.FolderStatusReady || folder.FileCount != 0 {
		t.Errorf("empty folder should be ready with zero files: %+v", folder)
	}
	if folder.IndexMode != nil {
		t.Errorf("empty folder has no index mode")
	}
}

func TestIngestFolderListFailureMarksFailed(t *testing.T) {
	driveClient := &fakeDrive{listErr: errors.New("drive is down")}
	folders := newFakeFolderStore(pendingFolder())
	svc := testService(folders, driveClient, &fakeUploader{}, vectorstore.NewMemoryStore())

	err := svc.IngestFolder(context.Background(), "folder-1", "user-1", "tok")
	if err == nil {
		t.Fatalf("expected an error")
	}
	folder, _ := folders.GetByID(context.Background(), "folder-1")
	if folder.Status != models.FolderStatusFailed {
		t.Errorf("status = %q, want failed", folder.Status)
	}
}

func TestIngestFolderMissingFolderIsNoop(t *testing.T) {
	svc := testService(newFakeFolderStore(), &fakeDrive{}, &fakeUploader{}, vectorstore.NewMemoryStore())
	if err := svc.IngestFolder(context.Background(), "ghost", "user-1", "tok"); err != nil {
		t.Errorf("missing folder should be a no-op, got %v", err)
	}
}

// staticLocker denies every acquisition.
type staticLocker struct{ held bool }

func (l *staticLocker) Acquire(context.Context, string) (bool, error) { return !l.held, nil }
func (l *staticLocker) Release(context.Context, string) error         { return nil }

func TestIngestFolderSkipsWhenLockHeld(t *testing.T) {
	driveClient, _ := textFiles(1, 100)
	folders := newFakeFolderStore(pendingFolder())
	svc := NewService(folders, driveClient, &fakeUploader{}, vectorstore.NewMemoryStore(), Options{
		Locker: &staticLocker{held: true},
	})

	if err := svc.IngestFolder(context.Background(), "folder-1", "user-1", "tok"); err != nil {
		t.Fatalf("IngestFolder: %v", err)
	}
	folder, _ := folders.GetByID(context.Background(), "folder-1")
	if folder.Status != models.FolderStatusPending {
		t.Errorf("a skipped run must not touch the folder, status = %q", folder.Status)
	}
}

func TestIngestFileFastPath(t *testing.T) {
	driveClient, files := textFiles(1, 500)
	folders := newFakeFolderStore(pendingFolder())
	store := vectorstore.NewMemoryStore()
	svc := testService(folders, driveClient, &fakeUploader{}, store)

	if err := svc.IngestFile(context.Background(), "folder-1", "user-1", "tok", files[0].ID); err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	folder, _ := folders.GetByID(context.Background(), "folder-1")
	if folder.IndexMode == nil || *folder.IndexMode != models.IndexModeNativeFiles {
		t.Errorf("index mode = %v, want native_files", folder.IndexMode)
	}
	if folder.FileCount != 1 || len(folder.UploadedFiles) != 1 {
		t.Errorf("unexpected counts: %d files, %d uploads", folder.FileCount, len(folder.UploadedFiles))
	}
	manifest, _ := store.GetFileManifest(context.Background(), "user-1", "folder-1")
	if len(manifest) != 1 {
		t.Errorf("manifest has %d entries, want 1", len(manifest))
	}
}

func TestIngestFileUploadFailureFallsBack(t *testing.T) {
	driveClient, files := textFiles(1, 500)
	folders := newFakeFolderStore(pendingFolder())
	store := vectorstore.NewMemoryStore()
	svc := testService(folders, driveClient, &fakeUploader{fail: map[string]bool{files[0].ID: true}}, store)

	if err := svc.IngestFile(context.Background(), "folder-1", "user-1", "tok", files[0].ID); err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	folder, _ := folders.GetByID(context.Background(), "folder-1")
	if folder.IndexMode == nil || *folder.IndexMode != models.IndexModeVectorStore {
		t.Errorf("index mode = %v, want vector_store fallback", folder.IndexMode)
	}
	hits, _ := store.Search(context.Background(), "user-1", "folder-1", "word", 3, "")
	if len(hits) == 0 {
		t.Errorf("fallback should have indexed chunks")
	}
}

func TestBuildDocumentsSkipsWhitespaceOnly(t *testing.T) {
	svc := testService(newFakeFolderStore(), &fakeDrive{}, &fakeUploader{}, vectorstore.NewMemoryStore())

	file := models.FileDescriptor{ID: "blank", Name: "blank.txt", Path: "blank.txt", MimeType: "text/plain"}
	docs := svc.buildDocuments(file, []byte("   \n\t  \n"))
	if len(docs) != 0 {
		t.Errorf("whitespace-only text produced %d chunk(s), want 0", len(docs))
	}
}

func TestBuildDocumentsChunkIDs(t *testing.T) {
	svc := testService(newFakeFolderStore(), &fakeDrive{}, &fakeUploader{}, vectorstore.NewMemoryStore())

	file := models.FileDescriptor{ID: "abc", Name: "big.txt", Path: "big.txt", MimeType: "text/plain"}
	content := []byte(strings.Repeat("x", 2500))
	docs := svc.buildDocuments(file, content)

	if len(docs) != 3 {
		t.Fatalf("expected 3 chunks for 2500 bytes, got %d", len(docs))
	}
	for i, d := range docs {
		wantID := fmt.Sprintf("abc_chunk_%d", i)
		if d.ID != wantID {
			t.Errorf("chunk %d id = %q, want %q", i, d.ID, wantID)
		}
		if d.Metadata.ChunkIndex != i || d.Metadata.TotalChunks != 3 {
			t.Errorf("chunk %d metadata = %+v", i, d.Metadata)
		}
	}
}
