package service

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"newsdigest/internal/app/model"
)

// IngestPublisher publishes ingest events to NATS JetStream.
type IngestPublisher struct {
	js nats.JetStreamContext
}

// NewIngestPublisher creates a new ingest event publisher.
func NewIngestPublisher(js nats.JetStreamContext) *IngestPublisher {
	return &IngestPublisher{js: js}
}

// Publish emits one event for a freshly created link record.
func (p *IngestPublisher) Publish(record *model.LinkRecord) error {
	event := model.IngestEvent{
		ID:        uuid.New().String(),
		LinkID:    record.ID,
		URL:       record.URL,
		Source:    record.Source,
		Timestamp: time.Now(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, err = p.js.Publish(model.IngestStreamSubject, data)
	return err
}
