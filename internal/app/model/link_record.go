package model

import "time"

// Source identifies which connector discovered a link.
type Source string

const (
	SourceMastodon Source = "mastodon"
	SourceAlert    Source = "alert"
	SourceRSS      Source = "rss"
	SourceManual   Source = "manual"
)

// LinkRecord is the core entity stored in Postgres, one row per normalized
// URL. The ID is the canonical key derived by urlkey.Normalize; creation is
// first-write-wins and enrichment is the only step that mutates the
// descriptive fields afterwards.
type LinkRecord struct {
	ID          string    `db:"id" gorm:"primaryKey;size:500"`
	URL         string    `db:"url" gorm:"type:text;not null"`
	Source      Source    `db:"source" gorm:"size:16;not null;index"`
	Category    *string   `db:"category" gorm:"size:128"`
	Subcategory *string   `db:"subcategory" gorm:"size:128"`
	Summary     *string   `db:"summary" gorm:"type:text"`
	ReadingTime *int      `db:"reading_time" gorm:"column:reading_time"`
	Popularity  *int      `db:"popularity" gorm:"column:popularity"`
	Processed   bool      `db:"processed" gorm:"not null;default:false;index"`
	MailSent    bool      `db:"mail_sent" gorm:"not null;default:false;index"`
	CreatedAt   time.Time `db:"created_at" gorm:"autoCreateTime"`
}

// Enrichment carries the fields the enrichment step merges into an existing
// LinkRecord. Nil pointers leave the stored value untouched.
type Enrichment struct {
	Category    *string
	Subcategory *string
	Summary     *string
	ReadingTime *int
	Popularity  *int
}
