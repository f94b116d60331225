package model

import "time"

// RunStatus represents the current state of an export run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is the persisted record of one export run. The credential is never
// stored; TokenHint holds only its last four characters.
type Run struct {
	ID        string         `json:"id"`
	TokenHint string         `json:"token_hint"`
	Zips      []string       `json:"zips"`
	Status    RunStatus      `json:"status"`
	Error     string         `json:"error,omitempty"`
	Regions   []RegionResult `json:"regions,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// RegionResult records the outcome of one region's export.
type RegionResult struct {
	Zip        string `json:"zip"`
	Rows       int    `json:"rows"`
	DurationMs int64  `json:"duration_ms"`
}

// TokenHint masks a credential down to its last four characters for logs and
// run records.
func TokenHint(token string) string {
	if len(token) <= 4 {
		return "****"
	}
	return "****" + token[len(token)-4:]
}
