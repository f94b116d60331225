// Package store persists export run history.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/zipleads/internal/model"
)

// ErrRunNotFound reports an update or lookup against an unknown run ID.
var ErrRunNotFound = eris.New("store: run not found")

// Store defines the persistence interface for run history. The pipeline
// treats it as best-effort: failures are logged, never fatal.
type Store interface {
	CreateRun(ctx context.Context, run model.Run) error
	CompleteRun(ctx context.Context, runID string, regions []model.RegionResult) error
	FailRun(ctx context.Context, runID string, message string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	Migrate(ctx context.Context) error
	Close() error
}
