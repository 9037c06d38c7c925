package domain

import "time"

// Mode selects the candidate source set for one aggregation run.
type Mode string

const (
	// ModeFull runs every enabled source.
	ModeFull Mode = "full"
	// ModePriority runs the critical and high tiers only.
	ModePriority Mode = "priority"
	// ModeCountry runs enabled sources filtered by country.
	ModeCountry Mode = "country"
	// ModeSelective runs an explicit source key list.
	ModeSelective Mode = "selective"
)

// Outcome is the per-source result of one aggregation run.
type Outcome string

const (
	OutcomeCached  Outcome = "cached"
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
)

// SourceResult records how one source fared within a run.
type SourceResult struct {
	Source    string
	Outcome   Outcome
	Contracts int
	Duration  time.Duration
	Err       string
}

// RunSummary is the result of one aggregation run. Created and discarded
// per run; never persisted by the core.
type RunSummary struct {
	Mode       Mode
	StartedAt  time.Time
	FinishedAt time.Time

	// Contracts is the deduplicated contract list. No ordering is
	// guaranteed; callers needing order must sort explicitly.
	Contracts []NormalizedContract

	// Results are collected in completion order, not submission order.
	Results []SourceResult

	SourcesTotal     int
	SourcesSucceeded int
	SourcesFailed    int
	SourcesCached    int
	Duplicates       int

	Errors []string
}

// Duration returns the elapsed wall time of the run.
func (s *RunSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}
