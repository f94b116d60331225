// Package pipeline sequences the export run: clear the account, then build,
// await, export, and clear again for each requested region in order.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zipleads/internal/export"
	"github.com/sells-group/zipleads/internal/model"
	"github.com/sells-group/zipleads/internal/store"
	"github.com/sells-group/zipleads/internal/stream"
	"github.com/sells-group/zipleads/pkg/leadapi"
)

// Config bounds the pipeline's polling and fetching behavior.
type Config struct {
	Concurrency  int
	BuildBudget  time.Duration
	DeleteBudget time.Duration
	PollInterval time.Duration
}

// DefaultConfig returns the production budgets: 60 minutes for a region
// build, 30 minutes for a bulk delete, one count read every 5 seconds.
func DefaultConfig() Config {
	return Config{
		Concurrency:  export.DefaultConcurrency,
		BuildBudget:  60 * time.Minute,
		DeleteBudget: 30 * time.Minute,
		PollInterval: 5 * time.Second,
	}
}

// Pipeline drives one export run against the token's single upstream working
// set. Regions run strictly sequentially: concurrent builds would race on
// that working set.
type Pipeline struct {
	client   leadapi.Client
	store    store.Store
	exporter *export.Exporter
	cfg      Config
}

// New creates a Pipeline. The store may be nil, in which case no run history
// is recorded.
func New(client leadapi.Client, st store.Store, cfg Config) *Pipeline {
	return &Pipeline{
		client:   client,
		store:    st,
		exporter: export.NewExporter(client, cfg.Concurrency),
		cfg:      cfg,
	}
}

// Run executes the full export for a validated request, streaming progress to
// the sink. Any failure beyond a single page fetch aborts the run; remaining
// regions are never attempted.
func (p *Pipeline) Run(ctx context.Context, req model.ExportRequest, sink stream.Sink) error {
	runID := uuid.New().String()
	log := zap.L().With(zap.String("run_id", runID), zap.Strings("zips", req.Zips))
	log.Info("pipeline: starting export run", zap.String("token", model.TokenHint(req.Token)))

	p.recordStart(ctx, runID, req, log)

	regions, err := p.run(ctx, req, sink)
	if err != nil {
		log.Error("pipeline: export run failed", zap.Error(err))
		p.recordFailure(ctx, runID, err, log)
		return err
	}

	log.Info("pipeline: export run complete", zap.Int("regions", len(regions)))
	p.recordSuccess(ctx, runID, regions, log)
	return nil
}

func (p *Pipeline) run(ctx context.Context, req model.ExportRequest, sink stream.Sink) ([]model.RegionResult, error) {
	sink.Phase("Preparing account")
	if err := p.clearAccount(ctx, req.Token, sink, "pre-delete"); err != nil {
		return nil, err
	}

	var regions []model.RegionResult
	for _, zip := range req.Zips {
		result, err := p.runRegion(ctx, req.Token, zip, sink)
		if err != nil {
			return nil, err
		}
		regions = append(regions, *result)
	}
	return regions, nil
}

func (p *Pipeline) runRegion(ctx context.Context, token, zip string, sink stream.Sink) (*model.RegionResult, error) {
	start := time.Now()

	sink.Phase(fmt.Sprintf("Building lead list for %s", zip))
	build, err := p.client.BuildRegion(ctx, token, zip)
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("pipeline: build region %s", zip))
	}

	err = leadapi.PollCount(ctx, p.client, token, build.Expected, p.cfg.BuildBudget, "build "+zip,
		leadapi.WithInterval(p.cfg.PollInterval),
		leadapi.WithReport(func(current, target int) {
			sink.Linef("Building %s: %d/%d leads", zip, current, target)
		}),
	)
	if err != nil {
		return nil, err
	}

	sink.Phase(fmt.Sprintf("Exporting homeowners for %s", zip))
	result, err := p.exporter.Export(ctx, token, build.Expected)
	if err != nil {
		return nil, err
	}

	sink.CSV(zip, fmt.Sprintf("homeowners_%s.csv", zip), result.Data)
	sink.Linef("Exported %d homeowners for %s", result.Rows, zip)

	if err := p.clearAccount(ctx, token, sink, "cleanup "+zip); err != nil {
		return nil, err
	}

	return &model.RegionResult{
		Zip:        zip,
		Rows:       result.Rows,
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}

// clearAccount deletes the account's entire working set and waits for the
// live count to converge to zero. The delete is sized to the exact count read
// immediately before it; a zero count skips both steps.
func (p *Pipeline) clearAccount(ctx context.Context, token string, sink stream.Sink, label string) error {
	count, err := p.client.CountLeads(ctx, token)
	if err != nil {
		return eris.Wrap(err, "pipeline: "+label)
	}
	if count == 0 {
		return nil
	}

	sink.Linef("Deleting %d existing leads", count)
	if err := p.client.DeleteAll(ctx, token, count); err != nil {
		return eris.Wrap(err, "pipeline: "+label)
	}

	return leadapi.PollCount(ctx, p.client, token, 0, p.cfg.DeleteBudget, label,
		leadapi.WithInterval(p.cfg.PollInterval),
		leadapi.WithReport(func(current, _ int) {
			sink.Linef("Deleting leads: %d remaining", current)
		}),
	)
}

// Run history is best-effort: a store failure is logged and never aborts or
// fails an export.

func (p *Pipeline) recordStart(ctx context.Context, runID string, req model.ExportRequest, log *zap.Logger) {
	if p.store == nil {
		return
	}
	run := model.Run{
		ID:        runID,
		TokenHint: model.TokenHint(req.Token),
		Zips:      req.Zips,
		Status:    model.RunStatusRunning,
	}
	if err := p.store.CreateRun(ctx, run); err != nil {
		log.Warn("pipeline: failed to record run start", zap.Error(err))
	}
}

func (p *Pipeline) recordSuccess(ctx context.Context, runID string, regions []model.RegionResult, log *zap.Logger) {
	if p.store == nil {
		return
	}
	if err := p.store.CompleteRun(ctx, runID, regions); err != nil {
		log.Warn("pipeline: failed to record run completion", zap.Error(err))
	}
}

func (p *Pipeline) recordFailure(ctx context.Context, runID string, runErr error, log *zap.Logger) {
	if p.store == nil {
		return
	}
	if err := p.store.FailRun(ctx, runID, runErr.Error()); err != nil {
		log.Warn("pipeline: failed to record run failure", zap.Error(err))
	}
}
