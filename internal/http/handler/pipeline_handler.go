package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"newsdigest/internal/app/model"
	"newsdigest/internal/app/repository"
	"newsdigest/internal/app/service"
)

// PipelineDeps groups dependencies required by the pipeline handlers.
type PipelineDeps struct {
	Logger   *zap.Logger
	Pipeline *service.Pipeline
	Links    repository.LinkRepository
	Postgres *pgxpool.Pool
}

// PipelineHandler exposes the batch stages as trigger endpoints. The process
// has no scheduler of its own; an external cron calls these.
type PipelineHandler struct {
	logger   *zap.Logger
	pipeline *service.Pipeline
	links    repository.LinkRepository
	postgres *pgxpool.Pool
}

// NewPipelineHandler creates a pipeline handler with the provided dependencies.
func NewPipelineHandler(deps PipelineDeps) *PipelineHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PipelineHandler{
		logger:   logger,
		pipeline: deps.Pipeline,
		links:    deps.Links,
		postgres: deps.Postgres,
	}
}

// Register wires the trigger and API routes onto the provided router.
func (h *PipelineHandler) Register(router fiber.Router) {
	run := router.Group("/run")
	{
		run.Post("/mastodon", h.runConnector(string(model.SourceMastodon)))
		run.Post("/alerts", h.runConnector(string(model.SourceAlert)))
		run.Post("/enrich", h.RunEnrich)
		run.Post("/digest", h.RunDigest)
		run.Post("/all", h.RunAll)
	}

	router.Get("/health", h.Health)

	api := router.Group("/api")
	{
		api.Get("/links/unsent", h.ListUnsent)
	}
}

func (h *PipelineHandler) runConnector(source string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		connector := h.pipeline.Connector(source)
		if connector == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "unknown source: " + source,
			})
		}

		report, err := connector.Run(c.Context())
		return h.respond(c, report.Outcome, report, err)
	}
}

// RunEnrich handles POST /run/enrich
func (h *PipelineHandler) RunEnrich(c *fiber.Ctx) error {
	report, err := h.pipeline.Enricher().Run(c.Context())
	return h.respond(c, report.Outcome, report, err)
}

// RunDigest handles POST /run/digest
func (h *PipelineHandler) RunDigest(c *fiber.Ctx) error {
	report, err := h.pipeline.Digest().Run(c.Context())
	return h.respond(c, report.Outcome, report, err)
}

// RunAll handles POST /run/all
func (h *PipelineHandler) RunAll(c *fiber.Ctx) error {
	summary := h.pipeline.RunAll(c.Context())
	return h.respond(c, summary.Outcome, summary, nil)
}

func (h *PipelineHandler) respond(c *fiber.Ctx, outcome service.Outcome, report any, err error) error {
	if err != nil {
		h.logger.Error("triggered run failed", zap.String("path", c.Path()), zap.Error(err))
	}
	status := fiber.StatusOK
	if outcome == service.OutcomeFailure {
		status = fiber.StatusInternalServerError
	}
	return c.Status(status).JSON(report)
}

// Health handles GET /health
func (h *PipelineHandler) Health(c *fiber.Ctx) error {
	if h.postgres != nil {
		if err := h.postgres.Ping(c.Context()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "degraded",
				"error":  err.Error(),
			})
		}
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// UnsentLinkResponse represents one pending record in the unsent listing.
type UnsentLinkResponse struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	Category    *string   `json:"category,omitempty"`
	Subcategory *string   `json:"subcategory,omitempty"`
	Summary     *string   `json:"summary,omitempty"`
	ReadingTime *int      `json:"reading_time,omitempty"`
	Popularity  *int      `json:"popularity,omitempty"`
	Processed   bool      `json:"processed"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListUnsent handles GET /api/links/unsent
func (h *PipelineHandler) ListUnsent(c *fiber.Ctx) error {
	records, err := h.links.ListUnsent(c.Context())
	if err != nil {
		h.logger.Error("failed to list unsent links", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list unsent links",
		})
	}

	out := make([]UnsentLinkResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, UnsentLinkResponse{
			ID:          rec.ID,
			URL:         rec.URL,
			Source:      string(rec.Source),
			Category:    rec.Category,
			Subcategory: rec.Subcategory,
			Summary:     rec.Summary,
			ReadingTime: rec.ReadingTime,
			Popularity:  rec.Popularity,
			Processed:   rec.Processed,
			CreatedAt:   rec.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"links": out, "count": len(out)})
}
