// Package app builds the estimator and its collaborators from the configuration.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/api/option"

	"autocloud.com/car-insurance-estimator/internal/config"
	"autocloud.com/car-insurance-estimator/internal/core"
	"autocloud.com/car-insurance-estimator/internal/reference"
	"autocloud.com/car-insurance-estimator/internal/store"
)

// App owns the long-lived clients; Close releases them.
type App struct {
	Estimator *core.Estimator

	closers []func()
}

func New(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*App, error) {
	a := &App{}

	template, err := cfg.SystemTemplate(core.DefaultSystemTemplate)
	if err != nil {
		return nil, err
	}

	refs, err := a.referenceProvider(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	llmService, err := core.NewLLMService(ctx, cfg.GoogleAPIKey, cfg.GeminiModel, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, llmService.Close)

	generator := core.NewGenerator(llmService, logger)
	a.Estimator = core.NewEstimator(refs, generator, template, logger)
	return a, nil
}

func (a *App) referenceProvider(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (reference.Provider, error) {
	switch cfg.ReferenceSource {
	case config.SourceBigQuery:
		var opts []option.ClientOption
		if cfg.GoogleCredentials != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.GoogleCredentials))
		}
		p, err := reference.NewBigQueryProvider(ctx, cfg.BigQueryProjectID, cfg.BigQueryTable, opts...)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() {
			if err := p.Close(); err != nil {
				logger.Errorf("Error closing BigQuery client: %v", err)
			}
		})
		logger.Infof("Reference costs from BigQuery table %s", cfg.BigQueryTable)
		return p, nil

	case config.SourceSQLite:
		s, err := store.NewSQLiteStore(cfg.DatabaseURL, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		a.closers = append(a.closers, func() { s.Close() })
		logger.Infof("Reference costs from SQLite database %s", cfg.DatabaseURL)
		return s, nil

	default:
		logger.Info("Reference cost enrichment disabled")
		return nil, nil
	}
}

// Close releases clients in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
