package model

import "time"

// IngestEvent is published to JetStream whenever a connector creates a new
// LinkRecord, and persisted to an audit table by the consumer.
type IngestEvent struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	LinkID    string    `json:"link_id" gorm:"size:500;not null;index"`
	URL       string    `json:"url" gorm:"type:text;not null"`
	Source    Source    `json:"source" gorm:"size:16;not null"`
	Timestamp time.Time `json:"timestamp" gorm:"not null"`
}

const (
	IngestStreamName     = "INGEST"
	IngestStreamSubject  = "ingest.links"
	IngestConsumerName   = "ingest-audit"
	IngestStreamMaxBytes = 1024 * 1024 * 100 // 100MB
)
