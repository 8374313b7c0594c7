package service

import (
	"context"

	"go.uber.org/zap"
)

// Outcome is the run status surfaced to callers: every stage resolves to
// success, partial (some items skipped with warnings), or failure (the
// stage aborted).
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailure Outcome = "failure"
)

// worse returns the more severe of two outcomes.
func worse(a, b Outcome) Outcome {
	rank := map[Outcome]int{OutcomeSuccess: 0, OutcomePartial: 1, OutcomeFailure: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// RunSummary aggregates the stage reports of one full pipeline run.
type RunSummary struct {
	Outcome    Outcome       `json:"outcome"`
	Connectors []RunReport   `json:"connectors"`
	Enrichment *EnrichReport `json:"enrichment,omitempty"`
	Digest     *DigestReport `json:"digest,omitempty"`
}

// Pipeline sequences the full batch: ingest every source, enrich, deliver.
// Stages are independent; a failed connector does not stop enrichment of
// records that earlier runs already ingested.
type Pipeline struct {
	connectors []*Connector
	enricher   *Enricher
	digest     *Digest
	logger     *zap.Logger
}

// NewPipeline wires the orchestrator.
func NewPipeline(connectors []*Connector, enricher *Enricher, digest *Digest, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		connectors: connectors,
		enricher:   enricher,
		digest:     digest,
		logger:     logger,
	}
}

// Connector returns the connector for the given source name, or nil.
func (p *Pipeline) Connector(source string) *Connector {
	for _, c := range p.connectors {
		if string(c.source.Name()) == source {
			return c
		}
	}
	return nil
}

// Enricher exposes the enrichment stage for single-stage triggers.
func (p *Pipeline) Enricher() *Enricher {
	return p.enricher
}

// Digest exposes the delivery stage for single-stage triggers.
func (p *Pipeline) Digest() *Digest {
	return p.digest
}

// RunAll executes every stage in order and reports the worst outcome seen.
func (p *Pipeline) RunAll(ctx context.Context) RunSummary {
	summary := RunSummary{Outcome: OutcomeSuccess}

	for _, connector := range p.connectors {
		report, _ := connector.Run(ctx)
		summary.Connectors = append(summary.Connectors, report)
		summary.Outcome = worse(summary.Outcome, report.Outcome)
	}

	enrichReport, _ := p.enricher.Run(ctx)
	summary.Enrichment = &enrichReport
	summary.Outcome = worse(summary.Outcome, enrichReport.Outcome)

	digestReport, _ := p.digest.Run(ctx)
	summary.Digest = &digestReport
	summary.Outcome = worse(summary.Outcome, digestReport.Outcome)

	p.logger.Info("pipeline run complete", zap.String("outcome", string(summary.Outcome)))
	return summary
}
