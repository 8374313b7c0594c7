package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

func TestPipeline_RunAll_WorstOutcomeWins(t *testing.T) {
	links := newMemLinkRepository()
	cursors := newMemCursorRepository()

	source := &fakeSource{
		paginates: true,
		pages:     [][]Item{{{ID: 1, Content: "https://a.example"}}},
	}
	connector := newTestConnector(source, links, cursors)

	llm := &mockLLM{completeFn: func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("deadline exceeded")
	}}
	enricher := NewEnricher(links, llm, nil, 10, zap.NewNop())
	digest := NewDigest(links, &mockMailer{}, digestConfig(), zap.NewNop())

	pipeline := NewPipeline([]*Connector{connector}, enricher, digest, zap.NewNop())
	summary := pipeline.RunAll(context.Background())

	if len(summary.Connectors) != 1 || summary.Connectors[0].Outcome != OutcomeSuccess {
		t.Fatalf("unexpected connector reports: %+v", summary.Connectors)
	}
	if summary.Enrichment.Outcome != OutcomeFailure {
		t.Fatalf("expected enrichment failure, got %s", summary.Enrichment.Outcome)
	}
	if summary.Outcome != OutcomeFailure {
		t.Fatalf("worst outcome must win, got %s", summary.Outcome)
	}
	// The failed enrichment does not stop delivery of the ingested record.
	if summary.Digest.Selected != 1 {
		t.Fatalf("expected digest to pick up the record, got %+v", summary.Digest)
	}
}

func TestPipeline_Connector_LooksUpBySourceName(t *testing.T) {
	links := newMemLinkRepository()
	cursors := newMemCursorRepository()
	connector := newTestConnector(&fakeSource{}, links, cursors)

	pipeline := NewPipeline([]*Connector{connector}, NewEnricher(links, &mockLLM{}, nil, 10, zap.NewNop()), NewDigest(links, &mockMailer{}, digestConfig(), zap.NewNop()), zap.NewNop())

	if pipeline.Connector("mastodon") != connector {
		t.Fatal("expected connector lookup by source name")
	}
	if pipeline.Connector("rss") != nil {
		t.Fatal("unknown source must return nil")
	}
}

func TestWorseOutcome(t *testing.T) {
	cases := []struct {
		a, b, want Outcome
	}{
		{OutcomeSuccess, OutcomeSuccess, OutcomeSuccess},
		{OutcomeSuccess, OutcomePartial, OutcomePartial},
		{OutcomePartial, OutcomeSuccess, OutcomePartial},
		{OutcomePartial, OutcomeFailure, OutcomeFailure},
		{OutcomeFailure, OutcomePartial, OutcomeFailure},
	}
	for _, tc := range cases {
		if got := worse(tc.a, tc.b); got != tc.want {
			t.Fatalf("worse(%s, %s) = %s, want %s", tc.a, tc.b, got, tc.want)
		}
	}
}
