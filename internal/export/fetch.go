package export

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/zipleads/internal/model"
	"github.com/sells-group/zipleads/pkg/leadapi"
)

// DefaultConcurrency caps parallel page fetches within one region's export.
const DefaultConcurrency = 50

// Fetcher pulls every page of the current working set in parallel and parses
// each into homeowner rows.
type Fetcher struct {
	client      leadapi.Client
	concurrency int
}

// NewFetcher creates a Fetcher. Non-positive concurrency falls back to the
// default cap.
func NewFetcher(client leadapi.Client, concurrency int) *Fetcher {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Fetcher{client: client, concurrency: concurrency}
}

// FetchAll fetches and parses all pages covering total records. Each page
// writes into its own index-addressed slot, so the returned rows are always
// in ascending offset order regardless of fetch timing. A failed page
// contributes nothing and is logged; it never aborts the sibling fetches.
func (f *Fetcher) FetchAll(ctx context.Context, token string, total int) []model.HomeownerRow {
	if total <= 0 {
		return nil
	}

	pages := (total + leadapi.PageSize - 1) / leadapi.PageSize
	slots := make([][]model.HomeownerRow, pages)

	g := &errgroup.Group{}
	g.SetLimit(f.concurrency)

	for idx := 0; idx < pages; idx++ {
		g.Go(func() error {
			offset := idx * leadapi.PageSize
			resp, err := f.client.FetchPage(ctx, token, offset)
			if err != nil {
				zap.L().Warn("export: page fetch failed, skipping",
					zap.Int("page", idx),
					zap.Int("offset", offset),
					zap.Error(err),
				)
				return nil
			}
			slots[idx] = ParsePage(resp.Leads)
			return nil
		})
	}

	// Workers never return errors; Wait is only a join point.
	_ = g.Wait()

	var rows []model.HomeownerRow
	for _, slot := range slots {
		rows = append(rows, slot...)
	}
	return rows
}
