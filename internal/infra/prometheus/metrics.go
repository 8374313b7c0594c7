package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline counters exposed on the metrics server.
var (
	LinksIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsdigest_links_ingested_total",
		Help: "New link records created, by source.",
	}, []string{"source"})

	DuplicateLinks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsdigest_duplicate_links_total",
		Help: "Links skipped because the record already existed, by source.",
	}, []string{"source"})

	ConnectorRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsdigest_connector_runs_total",
		Help: "Connector runs, by source and outcome.",
	}, []string{"source", "outcome"})

	EnrichmentBatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsdigest_enrichment_batches_total",
		Help: "Enrichment batches sent to the LLM.",
	})

	ParseDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsdigest_parse_dropped_total",
		Help: "LLM response blocks dropped because no URL could be matched.",
	})

	DigestsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsdigest_digests_sent_total",
		Help: "Digest mails successfully delivered.",
	})
)
