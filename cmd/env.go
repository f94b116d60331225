package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zipleads/internal/pipeline"
	"github.com/sells-group/zipleads/internal/store"
	"github.com/sells-group/zipleads/pkg/leadapi"
)

// initStore opens the run-history backend named by the config. The "none"
// driver disables history entirely.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "none":
		return nil, nil
	case "sqlite":
		return store.NewSQLite(cfg.Store.SQLitePath)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// initPipeline builds the export pipeline with its API client and run store.
// The returned close func is nil-safe to defer.
func initPipeline(ctx context.Context) (*pipeline.Pipeline, func(), error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if st != nil {
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, nil, eris.Wrap(err, "migrate store")
		}
	}

	client := leadapi.NewClient(leadapi.WithBaseURL(cfg.API.BaseURL))

	pcfg := pipeline.DefaultConfig()
	if cfg.Export.Concurrency > 0 {
		pcfg.Concurrency = cfg.Export.Concurrency
	}
	if cfg.Export.PollInterval > 0 {
		pcfg.PollInterval = cfg.Export.PollInterval
	}
	if cfg.Export.BuildBudgetMins > 0 {
		pcfg.BuildBudget = time.Duration(cfg.Export.BuildBudgetMins) * time.Minute
	}
	if cfg.Export.DeleteBudgetMins > 0 {
		pcfg.DeleteBudget = time.Duration(cfg.Export.DeleteBudgetMins) * time.Minute
	}

	closeFn := func() {
		if st != nil {
			if err := st.Close(); err != nil {
				zap.L().Warn("close store", zap.Error(err))
			}
		}
	}

	return pipeline.New(client, st, pcfg), closeFn, nil
}
