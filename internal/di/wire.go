// Package di provides dependency injection wiring and initialization.
package di

import (
	"fmt"

	"github.com/aristath/propfolio/internal/auth"
	"github.com/aristath/propfolio/internal/config"
	"github.com/aristath/propfolio/internal/modules/analytics"
	"github.com/rs/zerolog"
)

// Wire initializes all dependencies and returns a fully configured container
// Order of operations:
// 1. Open the record source
// 2. Build the analytics repository and service
// 3. Register maintenance jobs
func Wire(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{Config: cfg}

	// Step 1: Record source
	if err := InitializeRecordSource(container, cfg, log); err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to initialize record source: %w", err)
	}

	// Step 2: Analytics
	InitializeServices(container, cfg, log)

	// Step 3: Jobs
	if err := RegisterJobs(container, cfg, log); err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to register jobs: %w", err)
	}

	log.Info().Msg("Dependency injection wiring completed successfully")

	return container, nil
}

// InitializeServices builds the analytics stack on top of container.Source
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) {
	container.Repository = analytics.NewRepository(container.Source, log)
	container.AnalyticsService = analytics.NewService(
		container.Repository,
		auth.ContextResolver{},
		analytics.Settings{
			Benchmark:     cfg.MarketAverageROI,
			ReaderTimeout: cfg.ReaderTimeout,
			MaxRetries:    cfg.ReaderMaxRetries,
		},
		log,
	)
}
