package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"newsdigest/config"
	"newsdigest/internal/app/model"
)

func digestConfig() config.DigestConfig {
	return config.DigestConfig{
		Sender:    "pipeline@example.com",
		Recipient: "reader@example.com",
		Subject:   "News digest",
	}
}

func strptr(s string) *string { return &s }
func intptr(n int) *int       { return &n }

func TestDigest_Run_SendsAndMarks(t *testing.T) {
	repo := newMemLinkRepository()
	repo.records["a"] = &model.LinkRecord{
		ID: "a", URL: "https://a.example",
		Category: strptr("Artificial Intelligence"), Subcategory: strptr("AI"),
		Summary: strptr("A summary."), ReadingTime: intptr(7), Popularity: intptr(120),
		Processed: true,
	}
	repo.records["b"] = &model.LinkRecord{
		ID: "b", URL: "https://b.example", Processed: false,
	}

	mailer := &mockMailer{}
	digest := NewDigest(repo, mailer, digestConfig(), zap.NewNop())

	report, err := digest.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if report.Selected != 2 || report.Marked != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if mailer.sent != 1 || mailer.lastTo != "reader@example.com" {
		t.Fatalf("unexpected mailer state: sent=%d to=%s", mailer.sent, mailer.lastTo)
	}
	for _, id := range []string{"a", "b"} {
		if !repo.get(id).MailSent {
			t.Fatalf("record %s not marked sent", id)
		}
	}
	// Unprocessed records still ship; nothing waits forever on enrichment.
	if !strings.Contains(mailer.body, "https://b.example") {
		t.Fatal("unprocessed record missing from digest body")
	}
}

func TestDigest_SendFailure_MarksNothing(t *testing.T) {
	repo := newMemLinkRepository()
	repo.records["a"] = &model.LinkRecord{ID: "a", URL: "https://a.example", Processed: true}

	mailer := &mockMailer{sendFn: func(ctx context.Context, from, to, subject, body string) error {
		return errors.New("smtp unavailable")
	}}
	digest := NewDigest(repo, mailer, digestConfig(), zap.NewNop())

	report, err := digest.Run(context.Background())
	if !IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if report.Outcome != OutcomeFailure {
		t.Fatalf("expected failure outcome, got %s", report.Outcome)
	}
	if repo.get("a").MailSent {
		t.Fatal("a failed send must not mark records")
	}
}

func TestDigest_RetryAfterSendFailure_ResendsSameSet(t *testing.T) {
	repo := newMemLinkRepository()
	repo.records["a"] = &model.LinkRecord{ID: "a", URL: "https://a.example", Processed: true}

	calls := 0
	mailer := &mockMailer{sendFn: func(ctx context.Context, from, to, subject, body string) error {
		calls++
		if calls == 1 {
			return errors.New("smtp unavailable")
		}
		return nil
	}}
	digest := NewDigest(repo, mailer, digestConfig(), zap.NewNop())

	if _, err := digest.Run(context.Background()); err == nil {
		t.Fatal("expected first run to fail")
	}
	report, err := digest.Run(context.Background())
	if err != nil {
		t.Fatalf("retry returned error: %v", err)
	}
	if report.Selected != 1 || report.Marked != 1 {
		t.Fatalf("unexpected retry report: %+v", report)
	}
	if !repo.get("a").MailSent {
		t.Fatal("record not marked after successful retry")
	}
}

func TestDigest_NothingUnsent(t *testing.T) {
	repo := newMemLinkRepository()
	repo.records["a"] = &model.LinkRecord{ID: "a", URL: "https://a.example", MailSent: true}

	mailer := &mockMailer{}
	digest := NewDigest(repo, mailer, digestConfig(), zap.NewNop())

	report, err := digest.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if report.Selected != 0 || mailer.sent != 0 {
		t.Fatalf("no mail should go out for an empty set: %+v", report)
	}
}

func TestRenderDigest_GroupsAndOrdersDeterministically(t *testing.T) {
	records := []model.LinkRecord{
		{ID: "c", URL: "https://c.example"},
		{ID: "a", URL: "https://a.example", Category: strptr("Artificial Intelligence"), Subcategory: strptr("AI"), Summary: strptr("About models.")},
		{ID: "b", URL: "https://b.example", Category: strptr("Artificial Intelligence")},
	}

	body := RenderDigest(records)
	if body != RenderDigest(records) {
		t.Fatal("rendering is not deterministic")
	}

	aiIdx := strings.Index(body, "## Artificial Intelligence")
	uncatIdx := strings.Index(body, "## Uncategorized")
	if aiIdx < 0 || uncatIdx < 0 {
		t.Fatalf("missing category headings:\n%s", body)
	}
	if uncatIdx < aiIdx {
		t.Fatal("uncategorized records must come last")
	}
	if !strings.Contains(body, "### AI") {
		t.Fatalf("missing subcategory heading:\n%s", body)
	}
	// Bare records render before subcategory groups within a category.
	if bIdx := strings.Index(body, "https://b.example"); bIdx > strings.Index(body, "### AI") {
		t.Fatal("bare records must precede subcategory groups")
	}
}
