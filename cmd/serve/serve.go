// Package serve implements the serve command: scheduler, HTTP API and
// training-data export in one process.
package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/feeds/cmd/common"
	"github.com/jonesrussell/north-cloud/feeds/internal/api"
	"github.com/jonesrussell/north-cloud/feeds/internal/commands"
	"github.com/jonesrussell/north-cloud/feeds/internal/events"
	"github.com/jonesrussell/north-cloud/feeds/internal/export"
	"github.com/jonesrussell/north-cloud/feeds/internal/logger"
	"github.com/jonesrussell/north-cloud/feeds/internal/refresh"
	"github.com/jonesrussell/north-cloud/feeds/internal/subscriptions"
)

// Command returns the serve command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the refresh scheduler and the HTTP API",
		Long: `Starts the tick scheduler, the HTTP API and, when enabled, the
training-data exporter. Shuts down gracefully on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := common.NewCommandDeps()
			if err != nil {
				return fmt.Errorf("failed to get dependencies: %w", err)
			}
			defer func() { _ = deps.Logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return Run(ctx, deps)
		},
	}
}

// Run wires the service and blocks until ctx is cancelled.
func Run(ctx context.Context, deps common.CommandDeps) error {
	cfg := deps.Config
	log := deps.Logger

	if cfg.App.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	pipeline, err := common.NewPipeline(deps)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := pipeline.Close(); closeErr != nil {
			log.Warn("Failed to close pipeline", logger.Error(closeErr))
		}
	}()

	store, storeCloser, err := subscriptions.Open(cfg.Subscriptions)
	if err != nil {
		return fmt.Errorf("open subscriptions: %w", err)
	}
	defer func() { _ = storeCloser.Close() }()

	if cfg.Export.Enabled {
		unsubscribe, sinkCloser, exportErr := startExporter(ctx, deps, pipeline)
		if exportErr != nil {
			return exportErr
		}
		defer func() { _ = sinkCloser() }()
		defer unsubscribe()
	}

	scheduler, err := refresh.NewScheduler(pipeline.Refresher, pipeline.Bus, cfg.Scheduler.Refresh(), log)
	if err != nil {
		return err
	}

	router := api.NewRouter(api.Deps{
		Assembler:     pipeline.Assembler,
		Subscriptions: store,
		Commands:      commands.NewHandler(pipeline.Refresher, log),
		Sources:       pipeline.Table,
		Programs:      pipeline.Catalog,
		Metrics:       pipeline.Metrics,
		Gatherer:      pipeline.Gatherer(),
		MetricsPath:   cfg.Metrics.Path,
		Service:       cfg.App.Name,
		Logger:        log,
	})
	server := api.NewServer(cfg.Server, router, log)

	pipeline.Bus.Dispatch(ctx, events.AppInitialized, map[string]any{
		"service": cfg.App.Name,
		"env":     cfg.App.Env,
		"sources": pipeline.Table.Len(),
	}, nil)
	log.Info("Feeds service initialized",
		logger.String("env", cfg.App.Env),
		logger.Int("sources", pipeline.Table.Len()),
		logger.Int("pull_sources", len(pipeline.Refresher.Sources())),
		logger.Bool("export", cfg.Export.Enabled),
	)

	scheduler.Start(ctx)
	serveErr := server.Run(ctx)

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := scheduler.Stop(stopCtx); err != nil {
		log.Warn("Scheduler did not stop cleanly", logger.Error(err))
	}

	return serveErr
}

func startExporter(ctx context.Context, deps common.CommandDeps, p *common.Pipeline) (func(), func() error, error) {
	sink, err := export.Open(ctx, deps.Config.Export, deps.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open export sink: %w", err)
	}
	exporter := export.NewExporter(p.Assembler, sink, p.Bus, p.ExportRecorder(), deps.Logger,
		export.WithTimeout(deps.Config.Export.Timeout))
	return exporter.Subscribe(p.Bus), sink.Close, nil
}
