package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"newsdigest/internal/app/model"
	"newsdigest/internal/app/repository"
	"newsdigest/internal/infra/prometheus"
	"newsdigest/internal/urlkey"
)

// Item is one unit of source content: a post, a digest mail.
type Item struct {
	// ID is the externally-assigned, monotonically comparable identifier
	// the cursor tracks.
	ID int64
	// Ref is the source-native handle used to acknowledge the item, where
	// the source needs one.
	Ref string
	// Content is the raw HTML the links are extracted from.
	Content string
}

// Source abstracts a connector's upstream.
type Source interface {
	Name() model.Source
	// FetchPage returns items newer than sinceID. beforeID is the paging
	// token: zero requests the newest page, otherwise only items older
	// than beforeID are returned. An empty result means exhaustion.
	FetchPage(ctx context.Context, sinceID, beforeID int64) ([]Item, error)
	// Extract returns the raw outbound links of an item's content.
	Extract(content string) []string
	// MarkHandled acknowledges ingestion on the source side. Sources with
	// no acknowledgement call return nil.
	MarkHandled(ctx context.Context, item Item) error
	// Paginates reports whether FetchPage supports more than one page.
	Paginates() bool
}

// IngestNotifier publishes a notification for every newly created record.
type IngestNotifier interface {
	Publish(record *model.LinkRecord) error
}

// RunReport summarizes one connector run for logs and the trigger API.
type RunReport struct {
	Source      model.Source `json:"source"`
	Items       int          `json:"items"`
	LinksFound  int          `json:"links_found"`
	Created     int          `json:"created"`
	Duplicates  int          `json:"duplicates"`
	CursorMoved bool         `json:"cursor_moved"`
	Outcome     Outcome      `json:"outcome"`
	Error       string       `json:"error,omitempty"`
}

// Connector runs the generic cursor-tracked ingestion loop over a Source.
// State changes are strictly ordered: all link records of a run are durably
// written, then the source is acknowledged, then the cursor advances. A
// failure anywhere leaves the cursor untouched, so a rerun re-fetches the
// same window and no-ops on the already-written records.
type Connector struct {
	source   Source
	dedup    *DedupIndex
	cursors  repository.CursorRepository
	notifier IngestNotifier
	logger   *zap.Logger
}

// NewConnector wires a connector. notifier may be nil.
func NewConnector(source Source, dedup *DedupIndex, cursors repository.CursorRepository, notifier IngestNotifier, logger *zap.Logger) *Connector {
	return &Connector{
		source:   source,
		dedup:    dedup,
		cursors:  cursors,
		notifier: notifier,
		logger:   logger.With(zap.String("source", string(source.Name()))),
	}
}

// Run executes one ingestion batch. Pages are ingested as they arrive, so a
// failure on a later page leaves earlier pages durably written; only the
// cursor advance waits for the whole run. The returned report is always
// usable; the error is non-nil when the run aborted (transient or
// invariant).
func (c *Connector) Run(ctx context.Context) (RunReport, error) {
	report := RunReport{Source: c.source.Name(), Outcome: OutcomeSuccess}

	sinceID, err := c.cursors.Get(ctx, c.source.Name())
	if err != nil {
		if !errors.Is(err, repository.ErrCursorNotFound) {
			return c.fail(report, Transient("read cursor", err))
		}
		sinceID = 0
	}

	maxItemID := int64(0)
	beforeID := int64(0)
	for {
		page, err := c.source.FetchPage(ctx, sinceID, beforeID)
		if err != nil {
			return c.fail(report, Transient("fetch page", err))
		}

		kept := 0
		for _, item := range page {
			// Pages are newest-first; items at or below the cursor were
			// ingested by an earlier run.
			if item.ID <= sinceID {
				continue
			}
			kept++

			if err := c.ingestItem(ctx, item, &report); err != nil {
				return c.fail(report, err)
			}
			if err := c.source.MarkHandled(ctx, item); err != nil {
				return c.fail(report, Transient("mark handled", err))
			}

			if item.ID > maxItemID {
				maxItemID = item.ID
			}
			if beforeID == 0 || item.ID < beforeID {
				beforeID = item.ID
			}
		}
		report.Items += kept

		if kept == 0 {
			break
		}
		if sinceID == 0 || !c.source.Paginates() {
			// First run takes a single page instead of backfilling the
			// full history.
			break
		}
	}

	if report.Items == 0 {
		c.logger.Info("no new items")
		prometheus.ConnectorRuns.WithLabelValues(string(report.Source), string(OutcomeSuccess)).Inc()
		return report, nil
	}

	moved, err := c.cursors.Advance(ctx, c.source.Name(), maxItemID)
	if err != nil {
		return c.fail(report, Transient("advance cursor", err))
	}
	report.CursorMoved = moved
	if !moved {
		// Another run already passed this watermark; the monotonic guard
		// clamped the write. Nothing was lost, but it is worth seeing.
		c.logger.Warn("cursor advance clamped", zap.Int64("last_item_id", maxItemID))
	}

	c.logger.Info("connector run complete",
		zap.Int("items", report.Items),
		zap.Int("links_found", report.LinksFound),
		zap.Int("created", report.Created),
		zap.Int("duplicates", report.Duplicates),
		zap.Int64("cursor", maxItemID),
	)
	prometheus.ConnectorRuns.WithLabelValues(string(report.Source), string(report.Outcome)).Inc()
	return report, nil
}

func (c *Connector) ingestItem(ctx context.Context, item Item, report *RunReport) error {
	links := c.source.Extract(item.Content)
	report.LinksFound += len(links)

	for _, link := range links {
		target := urlkey.Unwrap(link)
		key, err := urlkey.Normalize(link)
		if err != nil {
			return fmt.Errorf("%w: normalize %q: %v", ErrInvariant, link, err)
		}

		created, err := c.dedup.InsertIfAbsent(ctx, &model.LinkRecord{
			ID:     key,
			URL:    target,
			Source: c.source.Name(),
		})
		if err != nil {
			return Transient("insert link", err)
		}

		if !created {
			report.Duplicates++
			prometheus.DuplicateLinks.WithLabelValues(string(report.Source)).Inc()
			continue
		}
		report.Created++
		prometheus.LinksIngested.WithLabelValues(string(report.Source)).Inc()

		if c.notifier != nil {
			if err := c.notifier.Publish(&model.LinkRecord{ID: key, URL: target, Source: c.source.Name()}); err != nil {
				// The audit stream is best effort, ingestion is not
				// rolled back for it.
				c.logger.Warn("ingest event publish failed", zap.String("id", key), zap.Error(err))
				report.Outcome = OutcomePartial
			}
		}
	}
	return nil
}

func (c *Connector) fail(report RunReport, err error) (RunReport, error) {
	report.Outcome = OutcomeFailure
	report.Error = err.Error()
	c.logger.Error("connector run aborted", zap.Error(err))
	prometheus.ConnectorRuns.WithLabelValues(string(report.Source), string(OutcomeFailure)).Inc()
	return report, err
}
