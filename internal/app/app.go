// Package app provides the application bootstrap: it wires the source
// adapters, the aggregator, the moderation and recommendation layers and the
// HTTP surfaces, and runs them until shutdown.
package app

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/lueurxax/filmosphere/internal/api"
	"github.com/lueurxax/filmosphere/internal/config"
	"github.com/lueurxax/filmosphere/internal/film"
	"github.com/lueurxax/filmosphere/internal/llm"
	"github.com/lueurxax/filmosphere/internal/moderation"
	"github.com/lueurxax/filmosphere/internal/observability"
	"github.com/lueurxax/filmosphere/internal/recommend"
	"github.com/lueurxax/filmosphere/internal/sources"
	db "github.com/lueurxax/filmosphere/internal/storage"
)

// App holds the application dependencies and runs the service.
type App struct {
	cfg      *config.Config
	database *db.DB
	logger   *zerolog.Logger
}

// New creates a new App instance with the given dependencies.
func New(cfg *config.Config, database *db.DB, logger *zerolog.Logger) *App {
	return &App{
		cfg:      cfg,
		database: database,
		logger:   logger,
	}
}

// StartHealthServer starts the health check and metrics server.
func (a *App) StartHealthServer(ctx context.Context) error {
	return observability.NewServer(a.database, a.cfg.HealthPort, a.logger).Start(ctx)
}

// Run wires every component and serves the API until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	imdb := sources.NewIMDBClient(sources.IMDBConfig{
		BaseURL:    a.cfg.IMDBAPIBase,
		Timeout:    a.cfg.HTTPTimeout,
		MaxRetries: a.cfg.HTTPRetries,
	}, a.logger)

	kinocheck := sources.NewKinoCheckClient(sources.KinoCheckConfig{
		BaseURL:    a.cfg.KinoCheckBase,
		APIKey:     a.cfg.KinoCheckAPIKey,
		Timeout:    a.cfg.HTTPTimeout,
		MaxRetries: a.cfg.HTTPRetries,
	}, a.logger)

	watchmode := sources.NewWatchmodeClient(sources.WatchmodeConfig{
		BaseURL:    a.cfg.WatchmodeBase,
		APIKey:     a.cfg.WatchmodeAPIKey,
		Regions:    a.cfg.WatchmodeRegions,
		Timeout:    a.cfg.HTTPTimeout,
		MaxRetries: a.cfg.HTTPRetries,
	}, a.logger)

	aggregator := film.NewAggregator(imdb, kinocheck, watchmode, a.database, a.cfg.CacheTTL, a.logger)

	llmClient := llm.New(a.cfg, a.logger)
	if !llmClient.Configured() {
		a.logger.Warn().Msg("no LLM credential configured, recommendations run in demo mode")
	}

	classifier := moderation.NewClassifier(llmClient, a.logger)
	sink := recommend.NewAuditSink(a.database, a.logger)
	orchestrator := recommend.NewOrchestrator(llmClient, classifier, a.database, sink, a.cfg.RecoDeadline, a.logger)

	server := api.NewServer(aggregator, imdb, orchestrator, kinocheck, a.cfg.APIPort, a.logger)

	return server.Start(ctx)
}
