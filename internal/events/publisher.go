// Package events publishes run outcomes to Kafka so downstream consumers can
// track deliveries without scraping logs.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"letterpod/internal/logging"
)

// DefaultTopic receives one message per run.
const DefaultTopic = "letterpod.runs"

// RunEvent is the JSON payload published for each finished run.
type RunEvent struct {
	RunID        string    `json:"run_id"`
	Trigger      string    `json:"trigger"`
	Status       string    `json:"status"`
	Outcome      string    `json:"outcome,omitempty"`
	Stage        string    `json:"stage,omitempty"`
	FailureClass string    `json:"failure_class,omitempty"`
	Error        string    `json:"error,omitempty"`
	Included     int       `json:"included"`
	Overflow     int       `json:"overflow"`
	Excluded     int       `json:"excluded"`
	Words        int       `json:"words,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	DryRun       bool      `json:"dry_run,omitempty"`
}

// Config selects brokers and topic.
type Config struct {
	Brokers  []string
	Topic    string
	ClientID string
}

// Publisher sends run events with a synchronous producer.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
}

// NewPublisher connects a synchronous producer to the brokers.
func NewPublisher(cfg Config, logger *slog.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("events: at least one broker is required")
	}
	saramaConfig := NewSaramaConfig(cfg.ClientID)
	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("events: connect producer: %w", err)
	}
	return NewWithProducer(producer, cfg.Topic, logger), nil
}

// NewSaramaConfig returns the producer settings used for run events.
func NewSaramaConfig(clientID string) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V3_6_0_0
	if strings.TrimSpace(clientID) != "" {
		cfg.ClientID = clientID
	}
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	return cfg
}

// NewWithProducer wraps an existing producer.
func NewWithProducer(producer sarama.SyncProducer, topic string, logger *slog.Logger) *Publisher {
	if strings.TrimSpace(topic) == "" {
		topic = DefaultTopic
	}
	return &Publisher{producer: producer, topic: topic, logger: logging.NewComponentLogger(logger, "events")}
}

// PublishRun sends the event keyed by run ID so a run's messages stay ordered.
func (p *Publisher) PublishRun(ctx context.Context, event RunEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: encode run event: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(event.RunID),
		Value:     sarama.ByteEncoder(data),
		Timestamp: event.FinishedAt,
		Headers: []sarama.RecordHeader{
			{Key: []byte("status"), Value: []byte(event.Status)},
		},
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("events: publish run %s: %w", event.RunID, err)
	}
	p.logger.Debug("run event published",
		logging.String(logging.FieldEventType, "run_event_published"),
		logging.String(logging.FieldRunID, event.RunID),
		logging.Int("partition", int(partition)),
		logging.Int64("offset", offset),
	)
	return nil
}

// Close flushes and closes the producer.
func (p *Publisher) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}
