package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"newsdigest/internal/app/model"
	apprepository "newsdigest/internal/app/repository"
)

// IngestConsumer drains ingest events from NATS JetStream into the audit
// table.
type IngestConsumer struct {
	js     nats.JetStreamContext
	logger *zap.Logger
	repo   apprepository.IngestEventRepository
}

// NewIngestConsumer creates a new ingest event consumer.
func NewIngestConsumer(js nats.JetStreamContext, logger *zap.Logger, repo apprepository.IngestEventRepository) *IngestConsumer {
	return &IngestConsumer{js: js, logger: logger, repo: repo}
}

// Start provisions the stream and durable consumer, then consumes in the
// background.
func (c *IngestConsumer) Start() error {
	_, err := c.js.StreamInfo(model.IngestStreamName)
	if err != nil {
		_, err = c.js.AddStream(&nats.StreamConfig{
			Name:     model.IngestStreamName,
			Subjects: []string{model.IngestStreamSubject},
			MaxBytes: model.IngestStreamMaxBytes,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
	}

	_, err = c.js.ConsumerInfo(model.IngestStreamName, model.IngestConsumerName)
	if err != nil {
		_, err = c.js.AddConsumer(model.IngestStreamName, &nats.ConsumerConfig{
			Durable:   model.IngestConsumerName,
			AckPolicy: nats.AckExplicitPolicy,
		})
		if err != nil {
			return fmt.Errorf("failed to create consumer: %w", err)
		}
	}

	sub, err := c.js.PullSubscribe(model.IngestStreamSubject, model.IngestConsumerName)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go c.consume(sub)
	return nil
}

func (c *IngestConsumer) consume(sub *nats.Subscription) {
	ctx := context.Background()
	for {
		msgs, err := sub.Fetch(10, nats.MaxWait(5*time.Second))
		if err != nil && err != nats.ErrTimeout {
			c.logger.Error("failed to fetch messages", zap.Error(err))
			continue
		}

		for _, msg := range msgs {
			var event model.IngestEvent
			if err := json.Unmarshal(msg.Data, &event); err != nil {
				c.logger.Error("failed to unmarshal ingest event", zap.Error(err))
				msg.Nak()
				continue
			}

			if err := c.repo.Create(ctx, &event); err != nil {
				c.logger.Error("failed to store ingest event",
					zap.String("id", event.ID),
					zap.String("link_id", event.LinkID),
					zap.Error(err))
				msg.Nak()
				continue
			}

			c.logger.Debug("ingest event stored",
				zap.String("id", event.ID),
				zap.String("link_id", event.LinkID),
				zap.String("source", string(event.Source)),
				zap.Time("timestamp", event.Timestamp),
			)

			msg.Ack()
		}
	}
}
