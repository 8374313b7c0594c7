package repository

import (
	"context"

	"gorm.io/gorm"

	"newsdigest/internal/app/model"
)

// IngestEventRepository persists the ingestion audit trail consumed off the
// JetStream ingest stream.
type IngestEventRepository interface {
	Create(ctx context.Context, event *model.IngestEvent) error
	CountSince(ctx context.Context, source model.Source, sinceUnix int64) (int64, error)
}

type ingestEventRepository struct {
	db *gorm.DB
}

// NewIngestEventRepository returns a GORM-backed IngestEventRepository.
func NewIngestEventRepository(db *gorm.DB) IngestEventRepository {
	return &ingestEventRepository{db: db}
}

func (r *ingestEventRepository) Create(ctx context.Context, event *model.IngestEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *ingestEventRepository) CountSince(ctx context.Context, source model.Source, sinceUnix int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.IngestEvent{}).
		Where("source = ? AND timestamp >= to_timestamp(?)", source, sinceUnix).
		Count(&count).Error
	return count, err
}
