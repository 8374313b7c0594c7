package service

import (
	"context"
	"fmt"

	"newsdigest/internal/app/model"
	"newsdigest/internal/extract"
	"newsdigest/internal/infra/mastodon"
)

// MastodonSource feeds the connector from one account's public statuses.
// Links pointing back at the posting instance and structural hashtag or
// mention anchors are excluded at extraction time.
type MastodonSource struct {
	client    *mastodon.Client
	accountID string
}

// NewMastodonSource builds a source over the given client. The account id is
// resolved lazily on the first fetch.
func NewMastodonSource(client *mastodon.Client) *MastodonSource {
	return &MastodonSource{client: client}
}

func (s *MastodonSource) Name() model.Source {
	return model.SourceMastodon
}

func (s *MastodonSource) Paginates() bool {
	return true
}

func (s *MastodonSource) FetchPage(ctx context.Context, sinceID, beforeID int64) ([]Item, error) {
	if s.accountID == "" {
		id, err := s.client.LookupAccount(ctx)
		if err != nil {
			return nil, fmt.Errorf("lookup account: %w", err)
		}
		s.accountID = id
	}

	statuses, err := s.client.Statuses(ctx, s.accountID, sinceID, beforeID)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(statuses))
	for _, st := range statuses {
		items = append(items, Item{ID: st.NumericID(), Content: st.Content})
	}
	return items, nil
}

func (s *MastodonSource) Extract(content string) []string {
	return extract.Links(content, extract.Options{
		ExcludeHost:            s.client.InstanceHost(),
		ExcludeTagsAndMentions: true,
	})
}

// MarkHandled is a no-op: the status API has no acknowledgement, the cursor
// alone prevents re-processing.
func (s *MastodonSource) MarkHandled(ctx context.Context, item Item) error {
	return nil
}
