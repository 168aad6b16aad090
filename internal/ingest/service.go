// Package ingest turns a linked drive folder into something chat can query:
// either a set of natively uploaded files or a chunked vector collection.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"drivemind/internal/document"
	"drivemind/internal/drive"
	"drivemind/internal/gemini"
	"drivemind/internal/models"
	"drivemind/internal/vectorstore"
	"drivemind/pkg/logger"
)

const minUploadSuccessRatio = 0.5

// FolderStore is the slice of folder persistence ingestion needs.
type FolderStore interface {
	GetByID(ctx context.Context, id string) (*models.Folder, error)
	Update(ctx context.Context, folder *models.Folder) error
}

// DriveClient lists and downloads drive content on behalf of a user.
type DriveClient interface {
	ListFolder(ctx context.Context, refreshToken, driveFolderID string) ([]models.FileDescriptor, error)
	GetFileMetadata(ctx context.Context, refreshToken, fileID string) (models.FileDescriptor, error)
	Download(ctx context.Context, refreshToken, fileID, mimeType string) ([]byte, error)
	DownloadAll(ctx context.Context, refreshToken string, files []models.FileDescriptor) ([]drive.Download, error)
}

// Uploader pushes file content into the native-file chat store.
type Uploader interface {
	UploadAll(ctx context.Context, payloads []gemini.FilePayload, concurrency int) []models.UploadedFile
}

// Locker serializes ingestion runs per folder.
type Locker interface {
	Acquire(ctx context.Context, folderID string) (bool, error)
	Release(ctx context.Context, folderID string) error
}

// Archiver keeps a copy of raw downloads. Archival is best effort and never
// fails a run.
type Archiver interface {
	Archive(ctx context.Context, folderID string, file models.FileDescriptor, content []byte) error
}

// RunReport summarizes one ingestion run for auditing.
type RunReport struct {
	FolderID   string    `bson:"folder_id"`
	UserID     string    `bson:"user_id"`
	Mode       string    `bson:"mode"`
	FileCount  int       `bson:"file_count"`
	ChunkCount int       `bson:"chunk_count"`
	Status     string    `bson:"status"`
	Error      string    `bson:"error,omitempty"`
	StartedAt  time.Time `bson:"started_at"`
	FinishedAt time.Time `bson:"finished_at"`
}

// Reporter persists run reports. Reporting is best effort.
type Reporter interface {
	Report(ctx context.Context, report RunReport) error
}

// Service runs ingestion end to end.
type Service struct {
	folders  FolderStore
	drive    DriveClient
	uploader Uploader
	store    vectorstore.Store
	locker   Locker
	archiver Archiver
	reporter Reporter

	chunkSize         int
	chunkOverlap      int
	uploadConcurrency int

	log *logger.Logger
}

// Options carries the optional collaborators and tunables of a Service.
// Zero values mean: no locking, no archive, no reports, default chunking.
type Options struct {
	Locker            Locker
	Archiver          Archiver
	Reporter          Reporter
	ChunkSize         int
	ChunkOverlap      int
	UploadConcurrency int
}

func NewService(folders FolderStore, driveClient DriveClient, uploader Uploader, store vectorstore.Store, opts Options) *Service {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = document.DefaultChunkSize
	}
	if opts.ChunkOverlap <= 0 {
		opts.ChunkOverlap = document.DefaultChunkOverlap
	}
	if opts.UploadConcurrency <= 0 {
		opts.UploadConcurrency = 1
	}
	return &Service{
		folders:           folders,
		drive:             driveClient,
		uploader:          uploader,
		store:             store,
		locker:            opts.Locker,
		archiver:          opts.Archiver,
		reporter:          opts.Reporter,
		chunkSize:         opts.ChunkSize,
		chunkOverlap:      opts.ChunkOverlap,
		uploadConcurrency: opts.UploadConcurrency,
		log:               logger.New("ingest"),
	}
}

// IngestFolder indexes every supported file under the folder's drive tree.
// Small folders go through the native upload path; large ones, and upload
// failures, fall back to the vector store. The folder row tracks progress
// through its status field.
func (s *Service) IngestFolder(ctx context.Context, folderID, userID, refreshToken string) error {
	if s.locker != nil {
		acquired, err := s.locker.Acquire(ctx, folderID)
		if err != nil {
			return fmt.Errorf("failed to acquire ingest lock: %w", err)
		}
		if !acquired {
			s.log.WithFolder(folderID).Info("ingestion already running, skipping")
			return nil
		}
		defer func() {
			if err := s.locker.Release(ctx, folderID); err != nil {
				s.log.WithFolder(folderID).WithErr(err).Warn("failed to release ingest lock")
			}
		}()
	}

	folder, err := s.folders.GetByID(ctx, folderID)
	if err != nil {
		return err
	}
	if folder == nil {
		return nil
	}

	folder.Status = models.FolderStatusIndexing
	if err := s.folders.Update(ctx, folder); err != nil {
		return err
	}

	report := RunReport{FolderID: folderID, UserID: userID, StartedAt: time.Now().UTC()}
	if err := s.ingestFolder(ctx, folder, userID, refreshToken, &report); err != nil {
		s.log.WithFolder(folderID).WithErr(err).Error("ingestion failed")
		folder.Status = models.FolderStatusFailed
		if uerr := s.folders.Update(ctx, folder); uerr != nil {
			s.log.WithFolder(folderID).WithErr(uerr).Error("failed to mark folder failed")
		}
		report.Status = string(models.FolderStatusFailed)
		report.Error = err.Error()
		s.report(ctx, report)
		return err
	}
	report.Status = string(models.FolderStatusReady)
	s.report(ctx, report)
	return nil
}

func (s *Service) ingestFolder(ctx context.Context, folder *models.Folder, userID, refreshToken string, report *RunReport) error {
	log := s.log.WithFolder(folder.ID).WithUser(userID)

	files, err := s.drive.ListFolder(ctx, refreshToken, folder.DriveFolderID)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		log.Warn("no supported files found in folder")
		s.markReady(folder, nil, 0, nil)
		return s.folders.Update(ctx, folder)
	}

	fastPath := UseFastPath(files)
	log.Info(fmt.Sprintf("found %d files, fast path: %t", len(files), fastPath))

	downloads, err := s.drive.DownloadAll(ctx, refreshToken, files)
	if err != nil {
		return err
	}
	s.archive(ctx, folder.ID, downloads)

	if fastPath {
		if done, err := s.tryFastPath(ctx, folder, userID, downloads, report); err != nil {
			log.WithErr(err).Warn("fast path failed, falling back to vector store")
		} else if done {
			return s.folders.Update(ctx, folder)
		}
	}

	docs, indexedCount := s.processFiles(downloads)
	log.Info(fmt.Sprintf("indexed %d files into %d chunks", indexedCount, len(docs)))

	if len(docs) > 0 {
		if err := s.store.Upsert(ctx, userID, folder.ID, docs); err != nil {
			return err
		}
	}
	if err := s.store.StoreFileManifest(ctx, userID, folder.ID, files); err != nil {
		return err
	}

	mode := models.IndexModeVectorStore
	s.markReady(folder, &mode, indexedCount, nil)
	report.Mode = string(mode)
	report.FileCount = indexedCount
	report.ChunkCount = len(docs)
	return s.folders.Update(ctx, folder)
}

// tryFastPath uploads the downloads to the native file store. It reports
// done=true when enough uploads succeeded to commit the folder to the
// native-files mode; done=false means the caller should fall back.
func (s *Service) tryFastPath(ctx context.Context, folder *models.Folder, userID string, downloads []drive.Download, report *RunReport) (bool, error) {
	payloads := make([]gemini.FilePayload, 0, len(downloads))
	for _, d := range downloads {
		payloads = append(payloads, gemini.FilePayload{File: d.File, Content: d.Content})
	}

	uploaded := s.uploader.UploadAll(ctx, payloads, s.uploadConcurrency)

	var succeeded []models.UploadedFile
	for _, u := range uploaded {
		if u.Uploaded() {
			succeeded = append(succeeded, u)
		}
	}
	if len(uploaded) == 0 || len(succeeded) == 0 ||
		float64(len(succeeded))/float64(len(uploaded)) < minUploadSuccessRatio {
		return false, fmt.Errorf("only %d/%d uploads succeeded", len(succeeded), len(uploaded))
	}

	manifest := make([]models.FileDescriptor, len(succeeded))
	for i, u := range succeeded {
		manifest[i] = models.FileDescriptor{ID: u.ID, Name: u.Name, Path: u.Path, MimeType: u.MimeType}
	}
	if err := s.store.StoreFileManifest(ctx, userID, folder.ID, manifest); err != nil {
		return false, err
	}

	mode := models.IndexModeNativeFiles
	s.markReady(folder, &mode, len(succeeded), succeeded)
	report.Mode = string(mode)
	report.FileCount = len(succeeded)
	return true, nil
}

// IngestFile indexes a single linked file. Files under the per-file limit
// go through the native upload; larger files, and failed uploads, fall back
// to the vector store.
func (s *Service) IngestFile(ctx context.Context, folderID, userID, refreshToken, driveFileID string) error {
	folder, err := s.folders.GetByID(ctx, folderID)
	if err != nil {
		return err
	}
	if folder == nil {
		return nil
	}

	folder.Status = models.FolderStatusIndexing
	if err := s.folders.Update(ctx, folder); err != nil {
		return err
	}

	report := RunReport{FolderID: folderID, UserID: userID, StartedAt: time.Now().UTC()}
	if err := s.ingestFile(ctx, folder, userID, refreshToken, driveFileID, report); err != nil {
		s.log.WithFolder(folderID).WithErr(err).Error("single-file ingestion failed")
		folder.Status = models.FolderStatusFailed
		if uerr := s.folders.Update(ctx, folder); uerr != nil {
			s.log.WithFolder(folderID).WithErr(uerr).Error("failed to mark folder failed")
		}
		report.Status = string(models.FolderStatusFailed)
		report.Error = err.Error()
		s.report(ctx, report)
		return err
	}
	return nil
}

func (s *Service) ingestFile(ctx context.Context, folder *models.Folder, userID, refreshToken, driveFileID string, report RunReport) error {
	file, err := s.drive.GetFileMetadata(ctx, refreshToken, driveFileID)
	if err != nil {
		return err
	}

	content, err := s.drive.Download(ctx, refreshToken, driveFileID, file.MimeType)
	if err != nil {
		return err
	}
	file.Size = int64(len(content))
	file.Path = file.Name
	s.archive(ctx, folder.ID, []drive.Download{{File: file, Content: content}})

	if UseFastPathSingle(file.Size) {
		uploaded := s.uploader.UploadAll(ctx, []gemini.FilePayload{{File: file, Content: content}}, 1)
		if len(uploaded) == 1 && uploaded[0].Uploaded() {
			if err := s.store.StoreFileManifest(ctx, userID, folder.ID, []models.FileDescriptor{file}); err != nil {
				return err
			}
			mode := models.IndexModeNativeFiles
			s.markReady(folder, &mode, 1, uploaded)
			report.Mode = string(mode)
			report.FileCount = 1
			report.Status = string(models.FolderStatusReady)
			s.report(ctx, report)
			return s.folders.Update(ctx, folder)
		}
		s.log.WithFolder(folder.ID).Warn("native upload failed, falling back to vector store")
	}

	docs := s.buildDocuments(file, content)
	if len(docs) == 0 {
		return fmt.Errorf("no indexable content in %s", file.Name)
	}

	if err := s.store.Upsert(ctx, userID, folder.ID, docs); err != nil {
		return err
	}
	if err := s.store.StoreFileManifest(ctx, userID, folder.ID, []models.FileDescriptor{file}); err != nil {
		return err
	}

	mode := models.IndexModeVectorStore
	s.markReady(folder, &mode, 1, nil)
	report.Mode = string(mode)
	report.FileCount = 1
	report.ChunkCount = len(docs)
	report.Status = string(models.FolderStatusReady)
	s.report(ctx, report)
	return s.folders.Update(ctx, folder)
}

// processFiles extracts and chunks the downloads across a small worker
// pool. Files without indexable content, and failed downloads, are skipped.
// indexedCount is the number of files that produced at least one chunk.
func (s *Service) processFiles(downloads []drive.Download) ([]vectorstore.Document, int) {
	const workers = 4

	type fileResult struct {
		docs []vectorstore.Document
	}
	results := make([]fileResult, len(downloads))

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i, d := range downloads {
		if d.Content == nil {
			continue
		}
		i, d := i, d
		g.Go(func() error {
			results[i].docs = s.buildDocuments(d.File, d.Content)
			return nil
		})
	}
	_ = g.Wait()

	var docs []vectorstore.Document
	indexedCount := 0
	for _, r := range results {
		if len(r.docs) == 0 {
			continue
		}
		docs = append(docs, r.docs...)
		indexedCount++
	}
	return docs, indexedCount
}

// buildDocuments extracts a file's text and cuts it into chunk documents.
// PDFs chunk per page so citations can carry page numbers.
func (s *Service) buildDocuments(file models.FileDescriptor, content []byte) []vectorstore.Document {
	mimeType := document.DetectMime(content, file.MimeType)
	kind := document.KindForMime(mimeType)

	if kind == document.KindPDF {
		return s.buildPDFDocuments(file, content)
	}

	text, err := document.Extract(content, kind)
	if err != nil {
		s.log.WithErr(err).Warn(fmt.Sprintf("extraction failed: %s", file.Name))
		return nil
	}
	if strings.TrimSpace(text) == "" {
		s.log.Debug(fmt.Sprintf("no indexable text in %s", file.Name))
		return nil
	}

	chunks := document.Chunk(text, s.chunkSize, s.chunkOverlap)
	docs := make([]vectorstore.Document, 0, len(chunks))
	for i, chunk := range chunks {
		docs = append(docs, vectorstore.Document{
			ID:      fmt.Sprintf("%s_chunk_%d", file.ID, i),
			Content: chunk,
			Metadata: vectorstore.ChunkMetadata{
				FileID:      file.ID,
				FileName:    file.Name,
				FilePath:    file.Path,
				MimeType:    mimeType,
				ChunkIndex:  i,
				TotalChunks: len(chunks),
			},
		})
	}
	return docs
}

func (s *Service) buildPDFDocuments(file models.FileDescriptor, content []byte) []vectorstore.Document {
	pages, err := document.PDFPages(content)
	if err != nil {
		s.log.WithErr(err).Warn(fmt.Sprintf("pdf extraction failed: %s", file.Name))
		return nil
	}

	var docs []vectorstore.Document
	chunkIndex := 0
	for _, page := range pages {
		chunks := document.Chunk(page.Text, s.chunkSize, s.chunkOverlap)
		for i, chunk := range chunks {
			docs = append(docs, vectorstore.Document{
				ID:      fmt.Sprintf("%s_page_%d_chunk_%d", file.ID, page.Number, i),
				Content: chunk,
				Metadata: vectorstore.ChunkMetadata{
					FileID:      file.ID,
					FileName:    file.Name,
					FilePath:    file.Path,
					MimeType:    document.MimePDF,
					ChunkIndex:  chunkIndex,
					PageNumber:  page.Number,
					TotalPages:  len(pages),
					ChunkInPage: i,
				},
			})
			chunkIndex++
		}
	}
	return docs
}

func (s *Service) markReady(folder *models.Folder, mode *models.IndexMode, fileCount int, uploaded []models.UploadedFile) {
	now := time.Now().UTC()
	folder.Status = models.FolderStatusReady
	folder.IndexMode = mode
	folder.FileCount = fileCount
	folder.IndexedAt = &now
	folder.UploadedFiles = uploaded
}

func (s *Service) archive(ctx context.Context, folderID string, downloads []drive.Download) {
	if s.archiver == nil {
		return
	}
	for _, d := range downloads {
		if d.Content == nil {
			continue
		}
		if err := s.archiver.Archive(ctx, folderID, d.File, d.Content); err != nil {
			s.log.WithFolder(folderID).WithErr(err).Warn(fmt.Sprintf("failed to archive %s", d.File.Name))
		}
	}
}

func (s *Service) report(ctx context.Context, report RunReport) {
	if s.reporter == nil {
		return
	}
	report.FinishedAt = time.Now().UTC()
	if err := s.reporter.Report(ctx, report); err != nil {
		s.log.WithFolder(report.FolderID).WithErr(err).Warn("failed to store run report")
	}
}
