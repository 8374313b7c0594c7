package model

import "time"

// SourceCursor is the per-source watermark: the largest externally-assigned
// item id known to be fully ingested. It only ever moves forward, and only
// after every link of the covered items has been durably written.
type SourceCursor struct {
	Source     Source    `db:"source" gorm:"primaryKey;size:16"`
	LastItemID int64     `db:"last_item_id" gorm:"not null"`
	UpdatedAt  time.Time `db:"updated_at" gorm:"autoUpdateTime"`
}
