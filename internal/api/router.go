package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonesrussell/north-cloud/feeds/internal/assembler"
	"github.com/jonesrussell/north-cloud/feeds/internal/commands"
	"github.com/jonesrussell/north-cloud/feeds/internal/domain"
	"github.com/jonesrussell/north-cloud/feeds/internal/feed"
	"github.com/jonesrussell/north-cloud/feeds/internal/logger"
	"github.com/jonesrussell/north-cloud/feeds/internal/metrics"
	"github.com/jonesrussell/north-cloud/feeds/internal/subscriptions"
)

// Assembler builds and looks up assembled responses.
type Assembler interface {
	Assemble(ctx context.Context, sources []string, ranking assembler.Ranking) (*assembler.Assembly, error)
	Lookup(ctx context.Context, etag string) (*assembler.Assembly, bool, error)
	Canonical(ctx context.Context, source string) (domain.Feed, bool, error)
	PageSize() int
}

// CommandHandler executes inbound commands.
type CommandHandler interface {
	Handle(ctx context.Context, cmd commands.Command) (any, error)
}

// SourceTable lists configured sources.
type SourceTable interface {
	All() []feed.Source
	Get(name string) (feed.Source, bool)
}

// ProgramIndex reports which sources have patch programs.
type ProgramIndex interface {
	Has(source string) bool
}

// Deps are the collaborators the router serves from.
type Deps struct {
	Assembler     Assembler
	Subscriptions subscriptions.Store
	Commands      CommandHandler
	Sources       SourceTable
	Programs      ProgramIndex
	Metrics       *metrics.Metrics
	Gatherer      prometheus.Gatherer
	MetricsPath   string
	Service       string
	Logger        logger.Logger
}

// NewRouter builds the gin engine with middleware and all routes. Callers
// choose the gin mode before building.
func NewRouter(d Deps) *gin.Engine {
	log := d.Logger.With(logger.Component("http"))
	router := gin.New()
	router.Use(RecoveryMiddleware(log))
	router.Use(RequestIDMiddleware(log))
	router.Use(LoggerMiddleware(log))
	router.Use(d.Metrics.GinMiddleware())

	h := &Handler{
		assembler:     d.Assembler,
		subscriptions: d.Subscriptions,
		commands:      d.Commands,
		sources:       d.Sources,
		programs:      d.Programs,
		logger:        log,
		service:       d.Service,
		started:       time.Now(),
	}

	router.GET("/health", h.Health)
	if d.Gatherer != nil {
		path := d.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.GET(path, gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/api/v1")
	v1.GET("/sources", h.ListSources)
	v1.GET("/feeds", h.AssembleFeeds)
	v1.GET("/feeds/:source", h.GetCanonicalFeed)
	v1.GET("/users/:id/feed", h.GetUserFeed)
	v1.POST("/commands", h.SubmitCommand)

	return router
}
