package drive

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gobwas/glob"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"drivemind/internal/config"
	"drivemind/internal/models"
	"drivemind/pkg/logger"
)

const (
	listPageSize        = 100
	subfolderBatchSize  = 10
	downloadFileTimeout = 60 * time.Second
	downloadMaxAttempts = 3
)

// Download pairs a listed file with its downloaded bytes. Content is nil
// when the download failed or timed out; callers decide how to degrade.
type Download struct {
	File    models.FileDescriptor
	Content []byte
}

// Client talks to Google Drive on behalf of a user. Every call builds its
// service from the caller's refresh token, so one Client serves all users.
type Client struct {
	clientID     string
	clientSecret string
	ignore       []glob.Glob
	concurrency  int
	log          *logger.Logger
}

func NewClient(cfg *config.AppConfig) *Client {
	log := logger.New("drive")

	var ignore []glob.Glob
	for _, pattern := range cfg.Ingestion.IgnorePatterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			log.WithErr(err).Warn(fmt.Sprintf("skipping bad ignore pattern %q", pattern))
			continue
		}
		ignore = append(ignore, g)
	}

	return &Client{
		clientID:     cfg.Google.ClientID,
		clientSecret: cfg.Google.ClientSecret,
		ignore:       ignore,
		concurrency:  cfg.Ingestion.DownloadConcurrency,
		log:          log,
	}
}

func (c *Client) service(ctx context.Context, refreshToken string) (*drive.Service, error) {
	conf := &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{drive.DriveReadonlyScope},
	}
	source := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})

	svc, err := drive.NewService(ctx, option.WithTokenSource(source))
	if err != nil {
		return nil, fmt.Errorf("failed to build drive service: %w", err)
	}
	return svc, nil
}

// GetFolderMetadata resolves a folder id to its name.
func (c *Client) GetFolderMetadata(ctx context.Context, refreshToken, folderID string) (models.FileDescriptor, error) {
	svc, err := c.service(ctx, refreshToken)
	if err != nil {
		return models.FileDescriptor{}, err
	}

	f, err := svc.Files.Get(folderID).
		Fields("id", "name").
		SupportsAllDrives(true).
		Context(ctx).Do()
	if err != nil {
		return models.FileDescriptor{}, fmt.Errorf("failed to get folder %s: %w", folderID, err)
	}
	return models.FileDescriptor{ID: f.Id, Name: f.Name}, nil
}

// GetFileMetadata resolves a file id to its descriptor.
func (c *Client) GetFileMetadata(ctx context.Context, refreshToken, fileID string) (models.FileDescriptor, error) {
	svc, err := c.service(ctx, refreshToken)
	if err != nil {
		return models.FileDescriptor{}, err
	}

	f, err := svc.Files.Get(fileID).
		Fields("id", "name", "mimeType", "size").
		SupportsAllDrives(true).
		Context(ctx).Do()
	if err != nil {
		return models.FileDescriptor{}, fmt.Errorf("failed to get file %s: %w", fileID, err)
	}
	return models.FileDescriptor{
		ID:       f.Id,
		Name:     f.Name,
		Path:     f.Name,
		MimeType: f.MimeType,
		Size:     f.Size,
	}, nil
}

// ListFolder walks a folder tree breadth-first and returns every supported
// file in it. Subfolders are expanded in batches; a subfolder that fails to
// list is skipped rather than failing the walk. Files matching an ignore
// pattern, and anything with an unsupported mime type, are dropped.
func (c *Client) ListFolder(ctx context.Context, refreshToken, folderID string) ([]models.FileDescriptor, error) {
	svc, err := c.service(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	files, pending, err := c.listOne(ctx, svc, folderID, "")
	if err != nil {
		return nil, err
	}

	for len(pending) > 0 {
		batch := pending
		if len(batch) > subfolderBatchSize {
			batch = batch[:subfolderBatchSize]
		}
		pending = pending[len(batch):]

		var mu sync.Mutex
		var wg sync.WaitGroup
		for _, sub := range batch {
			wg.Add(1)
			go func(sub subfolder) {
				defer wg.Done()
				subFiles, subDirs, err := c.listOne(ctx, svc, sub.id, sub.path)
				if err != nil {
					c.log.WithFolder(sub.id).WithErr(err).Warn("skipping unlistable subfolder")
					return
				}
				mu.Lock()
				files = append(files, subFiles...)
				pending = append(pending, subDirs...)
				mu.Unlock()
			}(sub)
		}
		wg.Wait()
	}

	return files, nil
}

type subfolder struct {
	id   string
	path string
}

func (c *Client) listOne(ctx context.Context, svc *drive.Service, folderID, path string) ([]models.FileDescriptor, []subfolder, error) {
	var files []models.FileDescriptor
	var subs []subfolder

	query := fmt.Sprintf("'%s' in parents and trashed = false", folderID)
	pageToken := ""
	for {
		call := svc.Files.List().
			Q(query).
			Fields("nextPageToken", "files(id, name, mimeType, size)").
			PageSize(listPageSize).
			SupportsAllDrives(true).
			IncludeItemsFromAllDrives(true).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		result, err := call.Do()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list folder %s: %w", folderID, err)
		}

		for _, f := range result.Files {
			filePath := f.Name
			if path != "" {
				filePath = path + "/" + f.Name
			}
			if c.ignored(f.Name, filePath) {
				continue
			}
			if f.MimeType == MimeFolder {
				subs = append(subs, subfolder{id: f.Id, path: filePath})
				continue
			}
			if _, ok := SupportedMimeTypes[f.MimeType]; !ok {
				c.log.Debug(fmt.Sprintf("skipping unsupported file %s (%s)", f.Name, f.MimeType))
				continue
			}
			files = append(files, models.FileDescriptor{
				ID:       f.Id,
				Name:     f.Name,
				Path:     filePath,
				MimeType: f.MimeType,
				Size:     f.Size,
			})
		}

		pageToken = result.NextPageToken
		if pageToken == "" {
			break
		}
	}

	return files, subs, nil
}

func (c *Client) ignored(name, path string) bool {
	for _, g := range c.ignore {
		if g.Match(name) || g.Match(path) {
			return true
		}
	}
	return false
}

// Download fetches a file's content, exporting Google Workspace types to
// their Office equivalents. Transient failures are retried.
func (c *Client) Download(ctx context.Context, refreshToken, fileID, mimeType string) ([]byte, error) {
	svc, err := c.service(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return c.download(ctx, svc, fileID, mimeType)
}

func (c *Client) download(ctx context.Context, svc *drive.Service, fileID, mimeType string) ([]byte, error) {
	op := func() ([]byte, error) {
		var resp io.ReadCloser
		if exportMime, ok := ExportMimeTypes[mimeType]; ok {
			r, err := svc.Files.Export(fileID, exportMime).Context(ctx).Download()
			if err != nil {
				return nil, fmt.Errorf("failed to export %s: %w", fileID, err)
			}
			resp = r.Body
		} else {
			r, err := svc.Files.Get(fileID).SupportsAllDrives(true).Context(ctx).Download()
			if err != nil {
				return nil, fmt.Errorf("failed to download %s: %w", fileID, err)
			}
			resp = r.Body
		}
		defer resp.Close()
		return io.ReadAll(resp)
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(downloadMaxAttempts))
}

// DownloadAll fetches the given files with bounded concurrency. Each file
// gets its own timeout; failures yield a Download with nil Content instead
// of aborting the batch. Results preserve the input order.
func (c *Client) DownloadAll(ctx context.Context, refreshToken string, files []models.FileDescriptor) ([]Download, error) {
	svc, err := c.service(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	concurrency := c.concurrency
	if concurrency <= 0 {
		concurrency = 5
	}

	results := make([]Download, len(files))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for i, f := range files {
		wg.Add(1)
		go func(i int, f models.FileDescriptor) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			fileCtx, cancel := context.WithTimeout(ctx, downloadFileTimeout)
			defer cancel()

			content, err := c.download(fileCtx, svc, f.ID, f.MimeType)
			if err != nil {
				c.log.WithErr(err).Warn(fmt.Sprintf("download failed: %s", f.Name))
				results[i] = Download{File: f}
				return
			}
			c.log.Debug(fmt.Sprintf("downloaded %s (%d bytes)", f.Name, len(content)))
			results[i] = Download{File: f, Content: content}
		}(i, f)
	}
	wg.Wait()

	return results, nil
}
