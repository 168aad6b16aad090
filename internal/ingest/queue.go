package ingest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"drivemind/pkg/logger"
)

// Job kinds.
const (
	JobKindFolder = "folder"
	JobKindFile   = "file"
)

// Job is one queued ingestion request. Kind selects between whole-folder
// and single-file ingestion; DriveFileID is set for the latter.
type Job struct {
	FolderID     string `json:"folder_id"`
	UserID       string `json:"user_id"`
	RefreshToken string `json:"refresh_token"`
	Kind         string `json:"kind"`
	DriveFileID  string `json:"drive_file_id,omitempty"`
}

// Publisher enqueues ingestion jobs.
type Publisher struct {
	writer *kafka.Writer
	log    *logger.Logger
}

func NewPublisher(writer *kafka.Writer) *Publisher {
	return &Publisher{writer: writer, log: logger.New("ingest-queue")}
}

// Publish enqueues a job, keyed by folder so retries for one folder stay
// ordered.
func (p *Publisher) Publish(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(job.FolderID),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("failed to publish job: %w", err)
	}
	p.log.WithFolder(job.FolderID).Info(fmt.Sprintf("queued %s ingestion job", job.Kind))
	return nil
}

// Consumer pulls ingestion jobs off the queue and runs them.
type Consumer struct {
	reader  *kafka.Reader
	service *Service
	log     *logger.Logger
}

func NewConsumer(reader *kafka.Reader, service *Service) *Consumer {
	return &Consumer{reader: reader, service: service, log: logger.New("ingest-consumer")}
}

// Run processes jobs until the context is canceled. A job that fails is
// still committed; ingestion marks the folder failed and the user retries
// through reindex.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to fetch job: %w", err)
		}

		var job Job
		if err := json.Unmarshal(msg.Value, &job); err != nil {
			c.log.WithErr(err).Error("dropping undecodable job")
		} else {
			c.dispatch(ctx, job)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.WithErr(err).Error("failed to commit job offset")
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, job Job) {
	var err error
	switch job.Kind {
	case JobKindFile:
		err = c.service.IngestFile(ctx, job.FolderID, job.UserID, job.RefreshToken, job.DriveFileID)
	default:
		err = c.service.IngestFolder(ctx, job.FolderID, job.UserID, job.RefreshToken)
	}
	if err != nil {
		c.log.WithFolder(job.FolderID).WithErr(err).Error("ingestion job failed")
	}
}
