package store

import (
	"context"

	"github.com/temporal-communities/geolit/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status  model.RunStatus `json:"status,omitempty"`
	Dataset string          `json:"dataset,omitempty"`
	Limit   int             `json:"limit,omitempty"`
	Offset  int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for enrichment runs.
type Store interface {
	CreateRun(ctx context.Context, dataset string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, summary *model.RunSummary) error
	FailRun(ctx context.Context, runID string, cause string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	SaveResults(ctx context.Context, runID string, results []model.RunResult) error
	ListResults(ctx context.Context, runID string) ([]model.RunResult, error)

	Migrate(ctx context.Context) error
	Close() error
}
