package gemini

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/generative-ai-go/genai"

	"drivemind/internal/document"
	"drivemind/internal/models"
)

const uploadMaxAttempts = 5

// officeMimesNeedConversion lists Office formats the file API will not
// accept directly; they get converted to plain text before upload.
var officeMimesNeedConversion = map[string]struct{}{
	document.MimeDocx: {},
	document.MimeXlsx: {},
	document.MimePptx: {},
}

// fileExtensions supplies an extension for files uploaded without one.
var fileExtensions = map[string]string{
	document.MimeGoogleDoc:    ".docx",
	document.MimeGoogleSheet:  ".xlsx",
	document.MimeGoogleSlides: ".pptx",
	document.MimeDocx:         ".docx",
	document.MimeXlsx:         ".xlsx",
	document.MimePptx:         ".pptx",
	document.MimePDF:          ".pdf",
	"text/plain":              ".txt",
	"text/markdown":           ".md",
	"text/csv":                ".csv",
	"image/png":               ".png",
	"image/jpeg":              ".jpg",
	"image/jpg":               ".jpg",
	"image/gif":               ".gif",
	"image/webp":              ".webp",
	"image/heic":              ".heic",
	"video/mp4":               ".mp4",
	"video/quicktime":         ".mov",
	"audio/mpeg":              ".mp3",
	"audio/wav":               ".wav",
}

// FilePayload pairs a file descriptor with its downloaded content.
type FilePayload struct {
	File    models.FileDescriptor
	Content []byte
}

// UploadAll pushes files into the Gemini file store with bounded
// concurrency. Google Workspace types are relabeled to their exported
// Office mime types, and Office formats are converted to plain text first.
// A failed upload yields an UploadedFile with an empty URI; callers judge
// the overall outcome from the success ratio. Payloads with nil content are
// skipped entirely.
func (s *Service) UploadAll(ctx context.Context, payloads []FilePayload, concurrency int) []models.UploadedFile {
	if concurrency <= 0 {
		concurrency = 1
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)
	var results []models.UploadedFile

	for _, p := range payloads {
		if p.Content == nil {
			continue
		}
		wg.Add(1)
		go func(p FilePayload) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			uploaded := models.UploadedFile{
				ID:       p.File.ID,
				Name:     p.File.Name,
				Path:     p.File.Path,
				MimeType: p.File.MimeType,
			}

			content, mimeType, filename := prepareForUpload(p.Content, p.File.MimeType, p.File.Name)
			uri, err := s.uploadOne(ctx, content, filename, mimeType)
			if err != nil {
				s.log.WithErr(err).Warn(fmt.Sprintf("upload failed: %s", p.File.Name))
			} else {
				uploaded.URI = uri
			}

			mu.Lock()
			results = append(results, uploaded)
			mu.Unlock()
		}(p)
	}
	wg.Wait()

	succeeded := 0
	for _, r := range results {
		if r.Uploaded() {
			succeeded++
		}
	}
	s.log.Info(fmt.Sprintf("upload complete: %d succeeded, %d failed", succeeded, len(results)-succeeded))
	return results
}

// prepareForUpload relabels Workspace exports, converts Office documents to
// text and guarantees the filename carries an extension.
func prepareForUpload(content []byte, mimeType, filename string) ([]byte, string, string) {
	if exported, ok := map[string]string{
		document.MimeGoogleDoc:    document.MimeDocx,
		document.MimeGoogleSheet:  document.MimeXlsx,
		document.MimeGoogleSlides: document.MimePptx,
	}[mimeType]; ok {
		mimeType = exported
	}

	if _, ok := officeMimesNeedConversion[mimeType]; ok {
		content, filename, mimeType = document.ConvertOfficeToText(content, mimeType, filename)
	}

	if !strings.Contains(filename, ".") {
		ext, ok := fileExtensions[mimeType]
		if !ok {
			ext = ".bin"
		}
		filename += ext
	}
	return content, mimeType, filename
}

func (s *Service) uploadOne(ctx context.Context, content []byte, filename, mimeType string) (string, error) {
	op := func() (string, error) {
		file, err := s.client.UploadFile(ctx, "", bytes.NewReader(content), &genai.UploadFileOptions{
			DisplayName: filename,
			MIMEType:    mimeType,
		})
		if err != nil {
			return "", fmt.Errorf("failed to upload %s: %w", filename, err)
		}
		return file.URI, nil
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uploadMaxAttempts))
}
