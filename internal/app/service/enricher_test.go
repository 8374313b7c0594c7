package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"newsdigest/internal/app/model"
	"newsdigest/internal/llmtext"
)

func seedUnprocessed(repo *memLinkRepository, urls ...string) {
	for i, u := range urls {
		id := strings.Repeat("x", i+1)
		repo.records[id] = &model.LinkRecord{ID: id, URL: u, Source: model.SourceMastodon}
	}
}

const clusteredResponse = `Input 1 (URL: https://a.example):
Summary: A deep dive into transformer inference.
Category: Artificial Intelligence
Topics: AI, Robotics
Reading Time: 7 minutes

Input 2 (URL: https://b.example):
Summary: Training data pipelines at scale.
Category: Artificial Intelligence
Topics: AI
Reading Time: 4 minutes

Input 3 (URL: https://c.example):
Summary: Benchmarking open models.
Category: Artificial Intelligence
Topics: AI
Reading Time: 5 minutes`

func TestEnricher_Run_MergesParsedFields(t *testing.T) {
	repo := newMemLinkRepository()
	seedUnprocessed(repo, "https://a.example", "https://b.example", "https://c.example")

	llm := &mockLLM{completeFn: func(ctx context.Context, prompt string) (string, error) {
		return clusteredResponse, nil
	}}
	popularity := &mockPopularity{pointsFn: func(ctx context.Context, link string) (int, bool, error) {
		if link == "https://a.example" {
			return 182, true, nil
		}
		return 0, false, nil
	}}

	enricher := NewEnricher(repo, llm, popularity, 10, zap.NewNop())
	report, err := enricher.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if report.Merged != 3 || report.Dropped != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}

	for id, want := range map[string]string{"x": "AI", "xx": "AI", "xxx": "AI"} {
		rec := repo.get(id)
		if !rec.Processed {
			t.Fatalf("record %s not marked processed", id)
		}
		if rec.Subcategory == nil || *rec.Subcategory != want {
			t.Fatalf("record %s: expected subcategory %q, got %v", id, want, rec.Subcategory)
		}
	}

	a := repo.get("x")
	if a.Popularity == nil || *a.Popularity != 182 {
		t.Fatalf("expected popularity 182, got %v", a.Popularity)
	}
	if a.ReadingTime == nil || *a.ReadingTime != 7 {
		t.Fatalf("expected reading time 7, got %v", a.ReadingTime)
	}
	b := repo.get("xx")
	if b.Popularity != nil {
		t.Fatalf("expected no popularity for b, got %v", *b.Popularity)
	}
}

func TestEnricher_TopicBelowThreshold_NoSubcategory(t *testing.T) {
	repo := newMemLinkRepository()
	seedUnprocessed(repo, "https://a.example", "https://b.example")

	llm := &mockLLM{completeFn: func(ctx context.Context, prompt string) (string, error) {
		return `Input 1 (URL: https://a.example):
Summary: One.
Category: Technology and Gadgets
Topics: Quantum
Reading Time: 3 minutes

Input 2 (URL: https://b.example):
Summary: Two.
Category: Technology and Gadgets
Topics: Quantum
Reading Time: 3 minutes`, nil
	}}

	enricher := NewEnricher(repo, llm, nil, 10, zap.NewNop())
	if _, err := enricher.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	for _, id := range []string{"x", "xx"} {
		if rec := repo.get(id); rec.Subcategory != nil {
			t.Fatalf("two corroborating URLs must not form a subcategory, got %q", *rec.Subcategory)
		}
	}
}

func TestEnricher_PartitionsVideoURLs(t *testing.T) {
	repo := newMemLinkRepository()
	seedUnprocessed(repo, "https://blog.example/post", "https://www.youtube.com/watch?v=abc")

	llm := &mockLLM{completeFn: func(ctx context.Context, prompt string) (string, error) {
		if strings.Contains(prompt, "video URLs") {
			return `Input 1 (URL: https://www.youtube.com/watch?v=abc):
Summary: A talk.
Category: Education and Learning
Topics: Conference
Reading Time: 30 minutes`, nil
		}
		return `Input 1 (URL: https://blog.example/post):
Summary: A post.
Category: Programming and Development
Topics: Go
Reading Time: 6 minutes`, nil
	}}

	enricher := NewEnricher(repo, llm, nil, 10, zap.NewNop())
	report, err := enricher.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if report.Batches != 2 {
		t.Fatalf("expected one web and one video batch, got %d", report.Batches)
	}
	if len(llm.prompts) != 2 {
		t.Fatalf("expected 2 prompts, got %d", len(llm.prompts))
	}
	if report.Merged != 2 {
		t.Fatalf("expected both records merged, got %+v", report)
	}
}

func TestEnricher_GitHubCategoryOverride(t *testing.T) {
	repo := newMemLinkRepository()
	seedUnprocessed(repo, "https://github.com/golang/go")

	llm := &mockLLM{completeFn: func(ctx context.Context, prompt string) (string, error) {
		return `Input 1 (URL: https://github.com/golang/go):
Summary: The Go repository.
Category: Programming and Development
Topics: Go
Reading Time: 2 minutes`, nil
	}}

	enricher := NewEnricher(repo, llm, nil, 10, zap.NewNop())
	if _, err := enricher.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	rec := repo.get("x")
	if rec.Category == nil || *rec.Category != "GitHub" {
		t.Fatalf("expected GitHub category override, got %v", rec.Category)
	}
}

func TestEnricher_UnreachableSentinel_StoredVerbatim(t *testing.T) {
	repo := newMemLinkRepository()
	seedUnprocessed(repo, "https://gone.example")

	llm := &mockLLM{completeFn: func(ctx context.Context, prompt string) (string, error) {
		return `Input 1 (URL: https://gone.example):
Summary: ` + llmtext.UnreachableSentinel + `
Category: Uncategorized
Topics:
Reading Time: 0 minutes`, nil
	}}

	enricher := NewEnricher(repo, llm, nil, 10, zap.NewNop())
	if _, err := enricher.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	rec := repo.get("x")
	if !rec.Processed {
		t.Fatal("unreachable record must still be marked processed")
	}
	if rec.Summary == nil || *rec.Summary != llmtext.UnreachableSentinel {
		t.Fatalf("sentinel must be stored verbatim, got %v", rec.Summary)
	}
}

func TestEnricher_DroppedBlock_LeavesRecordUnprocessed(t *testing.T) {
	repo := newMemLinkRepository()
	seedUnprocessed(repo, "https://a.example", "https://b.example")

	llm := &mockLLM{completeFn: func(ctx context.Context, prompt string) (string, error) {
		return `Input 1 (URL: https://a.example):
Summary: Fine.
Category: Politics
Topics: Elections
Reading Time: 4 minutes

Input 2:
Summary: The model lost the URL here.
Category: Politics`, nil
	}}

	enricher := NewEnricher(repo, llm, nil, 10, zap.NewNop())
	report, err := enricher.Run(context.Background())
	if err != nil {
		t.Fatalf("a dropped block must not fail the batch: %v", err)
	}
	if report.Dropped != 1 || report.Merged != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.Outcome != OutcomePartial {
		t.Fatalf("expected partial outcome, got %s", report.Outcome)
	}
	if repo.get("xx").Processed {
		t.Fatal("record with dropped block must stay unprocessed for retry")
	}
}

func TestEnricher_LLMFailure_AbortsBatch(t *testing.T) {
	repo := newMemLinkRepository()
	seedUnprocessed(repo, "https://a.example")

	llm := &mockLLM{completeFn: func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("deadline exceeded")
	}}

	enricher := NewEnricher(repo, llm, nil, 10, zap.NewNop())
	report, err := enricher.Run(context.Background())
	if !IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if report.Outcome != OutcomeFailure {
		t.Fatalf("expected failure outcome, got %s", report.Outcome)
	}
	if repo.get("x").Processed {
		t.Fatal("records must stay unprocessed when the batch aborts")
	}
}

func TestEnricher_PopularityFailure_IsNonFatal(t *testing.T) {
	repo := newMemLinkRepository()
	seedUnprocessed(repo, "https://a.example")

	llm := &mockLLM{completeFn: func(ctx context.Context, prompt string) (string, error) {
		return `Input 1 (URL: https://a.example):
Summary: Fine.
Category: Sports
Topics: Chess
Reading Time: 2 minutes`, nil
	}}
	popularity := &mockPopularity{pointsFn: func(ctx context.Context, link string) (int, bool, error) {
		return 0, false, errors.New("lookup timeout")
	}}

	enricher := NewEnricher(repo, llm, popularity, 10, zap.NewNop())
	report, err := enricher.Run(context.Background())
	if err != nil {
		t.Fatalf("popularity failures must not fail the run: %v", err)
	}
	if report.Merged != 1 {
		t.Fatalf("expected record merged, got %+v", report)
	}
	if rec := repo.get("x"); rec.Popularity != nil {
		t.Fatalf("expected unknown popularity, got %v", *rec.Popularity)
	}
}

func TestEnricher_NothingPending(t *testing.T) {
	repo := newMemLinkRepository()
	llm := &mockLLM{}

	enricher := NewEnricher(repo, llm, nil, 10, zap.NewNop())
	report, err := enricher.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if report.Batches != 0 || len(llm.prompts) != 0 {
		t.Fatalf("no batch should be sent for an empty backlog: %+v", report)
	}
}
