package ingest

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"

	"drivemind/internal/models"
)

// MinioArchiver implements Archiver on an object store bucket. Objects are
// keyed by folder and drive file id so re-ingestion overwrites in place.
type MinioArchiver struct {
	client *minio.Client
	bucket string
}

var _ Archiver = (*MinioArchiver)(nil)

func NewMinioArchiver(client *minio.Client, bucket string) *MinioArchiver {
	return &MinioArchiver{client: client, bucket: bucket}
}

func (a *MinioArchiver) Archive(ctx context.Context, folderID string, file models.FileDescriptor, content []byte) error {
	key := fmt.Sprintf("%s/%s/%s", folderID, file.ID, file.Name)
	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: file.MimeType,
	})
	if err != nil {
		return fmt.Errorf("failed to archive %s: %w", key, err)
	}
	return nil
}
