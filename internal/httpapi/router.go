// Package httpapi exposes runs over HTTP for serverless-style triggers.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"NewsHarvester/internal/domain"
	"NewsHarvester/internal/logging"
	"NewsHarvester/internal/usecase"
)

// Runner is the trigger surface served by the router.
type Runner interface {
	Run(ctx context.Context, mode usecase.Mode) (usecase.RunReport, error)
	Review(ctx context.Context) (usecase.ReviewResult, error)
}

// Deps wires the router.
type Deps struct {
	Runner Runner
	// KeyStates lists configured credential keys as set/unset for failure payloads.
	KeyStates func() map[string]string
	Gatherer  prometheus.Gatherer
	Logger    *slog.Logger
}

type handler struct {
	deps Deps
	// busy admits one run or review at a time per router.
	busy sync.Mutex
}

// NewRouter constructs a Gin engine with registered routes.
func NewRouter(deps Deps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	h := &handler{deps: deps}

	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.GET("/run", h.run)
	api.GET("/review", h.review)
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))

	return r
}

func (h *handler) run(c *gin.Context) {
	mode, err := usecase.ParseMode(c.Query("mode"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid mode", "details": err.Error()})
		return
	}
	if !h.acquire(c) {
		return
	}
	defer h.busy.Unlock()

	report, err := h.deps.Runner.Run(c.Request.Context(), mode)
	if err != nil {
		h.fail(c, "Scraping failed", report.RunID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      report.Message(),
		"runId":        report.RunID,
		"newArticles":  report.Ingest.NewCount,
		"cellsWritten": report.Ingest.CellsWritten,
		"report":       report,
	})
}

func (h *handler) review(c *gin.Context) {
	if !h.acquire(c) {
		return
	}
	defer h.busy.Unlock()

	result, err := h.deps.Runner.Review(c.Request.Context())
	if err != nil {
		h.fail(c, "Review failed", "", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "Review completed",
		"analyzedCount": result.Visited,
		"review":        result,
	})
}

// acquire answers 409 when another run or review is still in flight.
func (h *handler) acquire(c *gin.Context) bool {
	if h.busy.TryLock() {
		return true
	}
	c.JSON(http.StatusConflict, gin.H{"error": "Run already in progress"})
	return false
}

func (h *handler) fail(c *gin.Context, msg, runID string, err error) {
	h.deps.Logger.Error("trigger failed", "path", c.FullPath(), "run_id", runID, "error", err)

	body := gin.H{"error": msg, "details": err.Error()}
	var cfgErr *domain.ConfigError
	switch {
	case errors.As(err, &cfgErr):
		body["config"] = cfgErr.KeyStates()
	case h.deps.KeyStates != nil:
		body["config"] = h.deps.KeyStates()
	}
	if runID != "" {
		body["runId"] = runID
	}
	c.JSON(http.StatusInternalServerError, body)
}
