package export

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/zipleads/pkg/leadapi"
)

// Result is one region's finished export.
type Result struct {
	Data []byte
	Rows int
}

// Exporter runs the fetch, parse, dedup, and encode stages for one region's
// working set.
type Exporter struct {
	fetcher *Fetcher
}

// NewExporter creates an Exporter fetching through the given client under the
// concurrency cap.
func NewExporter(client leadapi.Client, concurrency int) *Exporter {
	return &Exporter{fetcher: NewFetcher(client, concurrency)}
}

// Export produces the CSV document for the working set's total record count.
func (e *Exporter) Export(ctx context.Context, token string, total int) (*Result, error) {
	rows := Dedup(e.fetcher.FetchAll(ctx, token, total))

	data, err := EncodeCSV(rows)
	if err != nil {
		return nil, eris.Wrap(err, "export: encode csv")
	}
	return &Result{Data: data, Rows: len(rows)}, nil
}
