package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"newsdigest/internal/app/model"
)

var (
	// ErrLinkNotFound signals that no record exists for the given key.
	ErrLinkNotFound = errors.New("link record not found")
)

// LinkRepository defines the data access contract for link records. Creation
// is an atomic conditional insert so concurrent connectors can race on the
// same key without breaking first-write-wins.
type LinkRepository interface {
	Exists(ctx context.Context, id string) (bool, error)
	CreateIfAbsent(ctx context.Context, record *model.LinkRecord) (bool, error)
	MergeEnrichment(ctx context.Context, id string, fields model.Enrichment) error
	ListUnprocessed(ctx context.Context) ([]model.LinkRecord, error)
	ListUnsent(ctx context.Context) ([]model.LinkRecord, error)
	MarkSent(ctx context.Context, ids []string) (int64, error)
	ListIDs(ctx context.Context) ([]string, error)
}

type linkRepository struct {
	db   *gorm.DB
	pool *pgxpool.Pool
}

// NewLinkRepository returns a GORM-backed LinkRepository. The pgx pool is
// used for the batch mark-sent update.
func NewLinkRepository(db *gorm.DB, pool *pgxpool.Pool) LinkRepository {
	return &linkRepository{db: db, pool: pool}
}

func (r *linkRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.LinkRecord{}).
		Where("id = ?", id).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateIfAbsent inserts the record unless a row with the same id already
// exists. The insert is a single ON CONFLICT DO NOTHING statement, not a
// read-then-write, so at most one record is ever created per id. Returns
// whether a new row was written.
func (r *linkRepository) CreateIfAbsent(ctx context.Context, record *model.LinkRecord) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(record)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MergeEnrichment updates only the enrichment fields of an existing record
// and flips processed. Fields left nil keep their stored value.
func (r *linkRepository) MergeEnrichment(ctx context.Context, id string, fields model.Enrichment) error {
	updates := map[string]interface{}{
		"processed": true,
	}
	if fields.Category != nil {
		updates["category"] = *fields.Category
	}
	if fields.Subcategory != nil {
		updates["subcategory"] = *fields.Subcategory
	}
	if fields.Summary != nil {
		updates["summary"] = *fields.Summary
	}
	if fields.ReadingTime != nil {
		updates["reading_time"] = *fields.ReadingTime
	}
	if fields.Popularity != nil {
		updates["popularity"] = *fields.Popularity
	}

	result := r.db.WithContext(ctx).
		Model(&model.LinkRecord{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLinkNotFound
	}
	return nil
}

func (r *linkRepository) ListUnprocessed(ctx context.Context) ([]model.LinkRecord, error) {
	var result []model.LinkRecord
	err := r.db.WithContext(ctx).
		Where("processed = ?", false).
		Order("created_at ASC").
		Find(&result).Error
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *linkRepository) ListUnsent(ctx context.Context) ([]model.LinkRecord, error) {
	var result []model.LinkRecord
	err := r.db.WithContext(ctx).
		Where("mail_sent = ?", false).
		Order("created_at ASC").
		Find(&result).Error
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MarkSent flips mail_sent for the given ids in one statement over the pgx
// pool. Called only after the outbound send succeeded.
func (r *linkRepository) MarkSent(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE link_records SET mail_sent = TRUE WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListIDs streams all stored keys, used to warm the in-process seen filter
// at startup.
func (r *linkRepository) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.LinkRecord{}).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
