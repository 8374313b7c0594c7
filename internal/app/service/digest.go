package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"newsdigest/config"
	"newsdigest/internal/app/model"
	"newsdigest/internal/app/repository"
	"newsdigest/internal/infra/prometheus"
)

// Mailer delivers a rendered digest.
type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

// DigestReport summarizes one delivery run.
type DigestReport struct {
	Selected int     `json:"selected"`
	Marked   int64   `json:"marked"`
	Outcome  Outcome `json:"outcome"`
	Error    string  `json:"error,omitempty"`
}

// Digest selects all unsent records, mails them as one report, and marks
// them sent only after the send succeeded. A failure between send and mark
// repeats the mail on the next run; records are never lost.
type Digest struct {
	repo   repository.LinkRepository
	mailer Mailer
	cfg    config.DigestConfig
	logger *zap.Logger
}

// NewDigest wires a delivery tracker.
func NewDigest(repo repository.LinkRepository, mailer Mailer, cfg config.DigestConfig, logger *zap.Logger) *Digest {
	return &Digest{repo: repo, mailer: mailer, cfg: cfg, logger: logger}
}

// Run delivers one digest.
func (d *Digest) Run(ctx context.Context) (DigestReport, error) {
	report := DigestReport{Outcome: OutcomeSuccess}

	records, err := d.repo.ListUnsent(ctx)
	if err != nil {
		return d.fail(report, Transient("list unsent", err))
	}
	report.Selected = len(records)
	if len(records) == 0 {
		d.logger.Info("nothing to deliver")
		return report, nil
	}

	subject := fmt.Sprintf("%s %s", d.cfg.Subject, time.Now().Format("2006-01-02"))
	body := RenderDigest(records)

	if err := d.mailer.Send(ctx, d.cfg.Sender, d.cfg.Recipient, subject, body); err != nil {
		return d.fail(report, Transient("send digest", err))
	}

	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}
	marked, err := d.repo.MarkSent(ctx, ids)
	if err != nil {
		// The mail is out but the flags are not flipped; the next run will
		// repeat these records. At-least-once, not exactly-once.
		return d.fail(report, Transient("mark sent", err))
	}
	report.Marked = marked

	prometheus.DigestsSent.Inc()
	d.logger.Info("digest delivered",
		zap.Int("records", report.Selected),
		zap.Int64("marked", marked),
		zap.String("recipient", d.cfg.Recipient),
	)
	return report, nil
}

func (d *Digest) fail(report DigestReport, err error) (DigestReport, error) {
	report.Outcome = OutcomeFailure
	report.Error = err.Error()
	d.logger.Error("digest run aborted", zap.Error(err))
	return report, err
}

// RenderDigest renders the records as a Markdown report grouped by category
// and subcategory. Group order is alphabetical with uncategorized records
// last, so two runs over the same set produce identical bodies.
func RenderDigest(records []model.LinkRecord) string {
	const uncategorized = "Uncategorized"

	byCategory := make(map[string][]model.LinkRecord)
	for _, rec := range records {
		category := uncategorized
		if rec.Category != nil && *rec.Category != "" {
			category = *rec.Category
		}
		byCategory[category] = append(byCategory[category], rec)
	}

	categories := make([]string, 0, len(byCategory))
	for category := range byCategory {
		if category != uncategorized {
			categories = append(categories, category)
		}
	}
	sort.Strings(categories)
	if _, ok := byCategory[uncategorized]; ok {
		categories = append(categories, uncategorized)
	}

	var b strings.Builder
	b.WriteString("# News digest\n")
	for _, category := range categories {
		fmt.Fprintf(&b, "\n## %s\n\n", category)

		group := byCategory[category]
		bySub := make(map[string][]model.LinkRecord)
		var subs []string
		var bare []model.LinkRecord
		for _, rec := range group {
			if rec.Subcategory == nil || *rec.Subcategory == "" {
				bare = append(bare, rec)
				continue
			}
			if _, ok := bySub[*rec.Subcategory]; !ok {
				subs = append(subs, *rec.Subcategory)
			}
			bySub[*rec.Subcategory] = append(bySub[*rec.Subcategory], rec)
		}
		sort.Strings(subs)

		for _, rec := range bare {
			b.WriteString(renderRecord(rec))
		}
		for _, sub := range subs {
			fmt.Fprintf(&b, "\n### %s\n\n", sub)
			for _, rec := range bySub[sub] {
				b.WriteString(renderRecord(rec))
			}
		}
	}
	return b.String()
}

func renderRecord(rec model.LinkRecord) string {
	var meta []string
	if rec.ReadingTime != nil && *rec.ReadingTime > 0 {
		meta = append(meta, fmt.Sprintf("%d min", *rec.ReadingTime))
	}
	if rec.Popularity != nil {
		meta = append(meta, fmt.Sprintf("%d points", *rec.Popularity))
	}

	line := fmt.Sprintf("- <%s>", rec.URL)
	if len(meta) > 0 {
		line += fmt.Sprintf(" (%s)", strings.Join(meta, ", "))
	}
	if rec.Summary != nil && *rec.Summary != "" {
		line += "\n  " + *rec.Summary
	}
	return line + "\n"
}
