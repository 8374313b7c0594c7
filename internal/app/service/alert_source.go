package service

import (
	"context"
	"fmt"

	"newsdigest/config"
	"newsdigest/internal/app/model"
	"newsdigest/internal/extract"
	"newsdigest/internal/infra/gmail"
)

// AlertSource feeds the connector from alert digest mails under a mailbox
// label. Messages have no monotonic numeric id of their own, so the internal
// timestamp (milliseconds) stands in as the cursor-tracked item id. After
// ingestion each message is moved to the processed label, which is the
// source-side acknowledgement.
type AlertSource struct {
	client    *gmail.Client
	label     string
	processed string
	blacklist []string

	labelID     string
	processedID string
}

// NewAlertSource builds a source over the given client. Label names are
// resolved to ids lazily on the first fetch.
func NewAlertSource(client *gmail.Client, cfg config.AlertsConfig) *AlertSource {
	return &AlertSource{
		client:    client,
		label:     cfg.Label,
		processed: cfg.ProcessedLabel,
		blacklist: cfg.Blacklist,
	}
}

func (s *AlertSource) Name() model.Source {
	return model.SourceAlert
}

// Paginates is false: the label listing is the whole backlog in one page.
func (s *AlertSource) Paginates() bool {
	return false
}

func (s *AlertSource) FetchPage(ctx context.Context, sinceID, beforeID int64) ([]Item, error) {
	if beforeID != 0 {
		return nil, nil
	}
	if err := s.resolveLabels(ctx); err != nil {
		return nil, err
	}

	ids, err := s.client.ListMessageIDs(ctx, s.labelID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	items := make([]Item, 0, len(ids))
	for _, id := range ids {
		msg, err := s.client.Fetch(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("fetch message %s: %w", id, err)
		}
		items = append(items, Item{ID: msg.InternalDate, Ref: msg.ID, Content: msg.HTML})
	}
	return items, nil
}

func (s *AlertSource) Extract(content string) []string {
	return extract.Links(content, extract.Options{
		BlacklistSubstrings: s.blacklist,
	})
}

func (s *AlertSource) MarkHandled(ctx context.Context, item Item) error {
	return s.client.Relabel(ctx, item.Ref, s.processedID, s.labelID)
}

func (s *AlertSource) resolveLabels(ctx context.Context) error {
	if s.labelID != "" && s.processedID != "" {
		return nil
	}
	labelID, err := s.client.LabelID(ctx, s.label)
	if err != nil {
		return fmt.Errorf("resolve label %q: %w", s.label, err)
	}
	processedID, err := s.client.LabelID(ctx, s.processed)
	if err != nil {
		return fmt.Errorf("resolve label %q: %w", s.processed, err)
	}
	s.labelID, s.processedID = labelID, processedID
	return nil
}
