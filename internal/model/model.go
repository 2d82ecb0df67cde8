// Package model holds the shared types of the enrichment pipeline's run
// bookkeeping.
package model

import "time"

// RunStatus tracks a run through its lifecycle.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// RunSummary aggregates the outcomes of one enrichment run.
type RunSummary struct {
	Records    int            `json:"records"`
	Located    int            `json:"located"`
	NoLocation int            `json:"no_location"`
	NoAreaCode int            `json:"no_area_code"`
	ResolvedBy map[string]int `json:"resolved_by,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// Run records one invocation of the pipeline over a dataset.
type Run struct {
	ID        string      `json:"id"`
	Dataset   string      `json:"dataset"`
	Status    RunStatus   `json:"status"`
	Summary   *RunSummary `json:"summary,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// RunResult is the persisted outcome for a single record of a run.
type RunResult struct {
	RunID      string   `json:"run_id"`
	Author     string   `json:"author"`
	Title      string   `json:"title"`
	AreaCode   *string  `json:"area_code,omitempty"`
	AreaLabel  *string  `json:"area_label,omitempty"`
	GeoNamesID *string  `json:"geonames_id,omitempty"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
	Note       *string  `json:"note,omitempty"`
	ResolvedBy string   `json:"resolved_by,omitempty"`
}
