// Package kafka wires up the ingestion job queue.
package kafka

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/segmentio/kafka-go"

	"drivemind/internal/config"
)

// Client holds the writer and reader for the ingestion jobs topic.
type Client struct {
	Writer *kafka.Writer
	Reader *kafka.Reader
	Config *config.KafkaConfig
}

// New connects to the first broker, creates the jobs topic when it does not
// exist yet and builds a writer plus a consumer-group reader for it.
func New(cfg *config.KafkaConfig) (*Client, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}

	if err := ensureTopic(cfg.Brokers[0], cfg.JobsTopic); err != nil {
		return nil, err
	}

	writer := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers...),
		Topic:    cfg.JobsTopic,
		Balancer: &kafka.LeastBytes{},
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		Topic:   cfg.JobsTopic,
		GroupID: cfg.GroupID,
	})

	return &Client{Writer: writer, Reader: reader, Config: cfg}, nil
}

func ensureTopic(broker, topic string) error {
	conn, err := kafka.Dial("tcp", broker)
	if err != nil {
		return fmt.Errorf("failed to dial kafka broker: %w", err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions()
	if err != nil {
		return fmt.Errorf("failed to read kafka partitions: %w", err)
	}
	for _, p := range partitions {
		if p.Topic == topic {
			return nil
		}
	}

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("failed to get kafka controller: %w", err)
	}
	controllerConn, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("failed to dial kafka controller: %w", err)
	}
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		return fmt.Errorf("failed to create topic %s: %w", topic, err)
	}
	return nil
}

func (c *Client) Close() error {
	var firstErr error
	if err := c.Writer.Close(); err != nil {
		firstErr = err
	}
	if err := c.Reader.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (c *Client) HealthCheck(ctx context.Context) error {
	conn, err := kafka.DialContext(ctx, "tcp", c.Config.Brokers[0])
	if err != nil {
		return fmt.Errorf("kafka health check failed: %w", err)
	}
	return conn.Close()
}
