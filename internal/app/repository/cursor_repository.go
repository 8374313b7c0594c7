package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"newsdigest/internal/app/model"
)

// ErrCursorNotFound signals that a source has never completed an ingestion
// batch (the uninitialized state).
var ErrCursorNotFound = errors.New("source cursor not found")

// CursorRepository tracks the per-source ingestion watermark. Advance is
// monotonic at the SQL level: an attempt to move the cursor backwards or in
// place is clamped to a no-op, never an error.
type CursorRepository interface {
	Get(ctx context.Context, source model.Source) (int64, error)
	Advance(ctx context.Context, source model.Source, lastItemID int64) (bool, error)
}

type cursorRepository struct {
	db *gorm.DB
}

// NewCursorRepository returns a GORM-backed CursorRepository.
func NewCursorRepository(db *gorm.DB) CursorRepository {
	return &cursorRepository{db: db}
}

func (r *cursorRepository) Get(ctx context.Context, source model.Source) (int64, error) {
	var cursor model.SourceCursor
	err := r.db.WithContext(ctx).
		Where("source = ?", source).
		First(&cursor).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrCursorNotFound
		}
		return 0, err
	}
	return cursor.LastItemID, nil
}

// Advance upserts the cursor, guarded so the stored value never decreases.
// The guard lives in the statement itself rather than a read-then-write, so
// two racing runs cannot regress the watermark. Returns whether the cursor
// actually moved.
func (r *cursorRepository) Advance(ctx context.Context, source model.Source, lastItemID int64) (bool, error) {
	result := r.db.WithContext(ctx).Exec(
		`INSERT INTO source_cursors (source, last_item_id, updated_at)
		 VALUES (?, ?, NOW())
		 ON CONFLICT (source) DO UPDATE
		 SET last_item_id = EXCLUDED.last_item_id, updated_at = NOW()
		 WHERE source_cursors.last_item_id < EXCLUDED.last_item_id`,
		source, lastItemID)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
