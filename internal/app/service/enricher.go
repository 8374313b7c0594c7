package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"newsdigest/internal/app/model"
	"newsdigest/internal/app/repository"
	"newsdigest/internal/infra/prometheus"
	"newsdigest/internal/llmtext"
)

// LLMClient produces a free-text completion for a prompt. All structure is
// imposed by the llmtext parser on this side.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// PopularityClient looks up an external score for a URL. The bool is false
// when the URL is unknown to the index.
type PopularityClient interface {
	Points(ctx context.Context, link string) (int, bool, error)
}

// EnrichReport summarizes one enrichment run.
type EnrichReport struct {
	Pending int     `json:"pending"`
	Batches int     `json:"batches"`
	Parsed  int     `json:"parsed"`
	Dropped int     `json:"dropped"`
	Merged  int     `json:"merged"`
	Missing int     `json:"missing"`
	Outcome Outcome `json:"outcome"`
	Error   string  `json:"error,omitempty"`
}

// Enricher drives the LLM enrichment batch: select unprocessed records,
// prompt per media partition, parse, cluster subcategories, fan out
// popularity lookups, merge.
type Enricher struct {
	repo       repository.LinkRepository
	llm        LLMClient
	popularity PopularityClient
	workers    int
	logger     *zap.Logger
}

// NewEnricher wires an enricher. workers bounds the popularity fan-out.
func NewEnricher(repo repository.LinkRepository, llm LLMClient, popularity PopularityClient, workers int, logger *zap.Logger) *Enricher {
	if workers <= 0 {
		workers = 10
	}
	return &Enricher{
		repo:       repo,
		llm:        llm,
		popularity: popularity,
		workers:    workers,
		logger:     logger,
	}
}

// Run enriches every unprocessed record. Records whose response block could
// not be matched stay unprocessed and are retried on the next run.
func (e *Enricher) Run(ctx context.Context) (EnrichReport, error) {
	report := EnrichReport{Outcome: OutcomeSuccess}

	records, err := e.repo.ListUnprocessed(ctx)
	if err != nil {
		return e.fail(report, Transient("list unprocessed", err))
	}
	report.Pending = len(records)
	if len(records) == 0 {
		e.logger.Info("nothing to enrich")
		return report, nil
	}

	web, video := partitionByMedia(records)

	var entries []llmtext.Entry
	for _, batch := range []struct {
		kind llmtext.PromptKind
		urls []string
	}{
		{llmtext.PromptWeb, web},
		{llmtext.PromptVideo, video},
	} {
		if len(batch.urls) == 0 {
			continue
		}
		report.Batches++
		prometheus.EnrichmentBatches.Inc()

		response, err := e.llm.Complete(ctx, llmtext.BuildPrompt(batch.kind, batch.urls))
		if err != nil {
			return e.fail(report, Transient("llm completion", err))
		}
		parsed, dropped := llmtext.Parse(response)
		if dropped > 0 {
			e.logger.Warn("response blocks dropped", zap.Int("count", dropped))
			prometheus.ParseDropped.Add(float64(dropped))
			report.Outcome = OutcomePartial
		}
		report.Dropped += dropped
		entries = append(entries, parsed...)
	}
	report.Parsed = len(entries)

	for i := range entries {
		if isGitHub(entries[i].URL) {
			entries[i].Category = "GitHub"
		}
	}
	llmtext.AssignSubcategories(entries)

	scores := e.lookupPoints(ctx, entries)

	idByURL := make(map[string]string, len(records))
	for _, rec := range records {
		idByURL[rec.URL] = rec.ID
	}

	for _, entry := range entries {
		id, ok := idByURL[entry.URL]
		if !ok {
			// The model occasionally rewrites a URL; the block is already
			// matched by URL, so a miss here means it points outside the
			// batch.
			e.logger.Warn("parsed entry matches no pending record", zap.String("url", entry.URL))
			report.Missing++
			report.Outcome = OutcomePartial
			continue
		}

		fields := enrichmentFields(entry, scores[entry.URL])
		if err := e.repo.MergeEnrichment(ctx, id, fields); err != nil {
			if errors.Is(err, repository.ErrLinkNotFound) {
				e.logger.Warn("record vanished before merge", zap.String("id", id))
				report.Missing++
				report.Outcome = OutcomePartial
				continue
			}
			return e.fail(report, Transient("merge enrichment", err))
		}
		report.Merged++
	}

	e.logger.Info("enrichment run complete",
		zap.Int("pending", report.Pending),
		zap.Int("parsed", report.Parsed),
		zap.Int("merged", report.Merged),
		zap.Int("dropped", report.Dropped),
	)
	return report, nil
}

// lookupPoints fans the popularity lookups out over a bounded worker pool
// and joins before returning. A failed or timed-out lookup is "score
// unknown", never fatal.
func (e *Enricher) lookupPoints(ctx context.Context, entries []llmtext.Entry) map[string]*int {
	scores := make(map[string]*int, len(entries))
	if e.popularity == nil {
		return scores
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, e.workers)

	for _, entry := range entries {
		wg.Add(1)
		sem <- struct{}{}
		go func(link string) {
			defer wg.Done()
			defer func() { <-sem }()

			points, found, err := e.popularity.Points(ctx, link)
			if err != nil {
				e.logger.Debug("popularity lookup failed", zap.String("url", link), zap.Error(err))
				return
			}
			if !found {
				return
			}
			mu.Lock()
			scores[link] = &points
			mu.Unlock()
		}(entry.URL)
	}
	wg.Wait()
	return scores
}

func (e *Enricher) fail(report EnrichReport, err error) (EnrichReport, error) {
	report.Outcome = OutcomeFailure
	report.Error = err.Error()
	e.logger.Error("enrichment run aborted", zap.Error(err))
	return report, err
}

// partitionByMedia splits the batch into generic-web and video URL lists.
// Each partition gets its own prompt contract.
func partitionByMedia(records []model.LinkRecord) (web, video []string) {
	for _, rec := range records {
		if isVideo(rec.URL) {
			video = append(video, rec.URL)
		} else {
			web = append(web, rec.URL)
		}
	}
	return web, video
}

func isVideo(link string) bool {
	host := hostOf(link)
	return host == "youtube.com" || host == "youtu.be"
}

func isGitHub(link string) bool {
	return hostOf(link) == "github.com"
}

func hostOf(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "m.")
	return host
}

func enrichmentFields(entry llmtext.Entry, popularity *int) model.Enrichment {
	fields := model.Enrichment{Popularity: popularity}
	if entry.Summary != "" {
		summary := entry.Summary
		fields.Summary = &summary
	}
	if entry.Category != "" {
		category := entry.Category
		fields.Category = &category
	}
	if entry.Subcategory != "" {
		subcategory := entry.Subcategory
		fields.Subcategory = &subcategory
	}
	if entry.ReadingTime > 0 {
		minutes := entry.ReadingTime
		fields.ReadingTime = &minutes
	}
	return fields
}
