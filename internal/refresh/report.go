package refresh

import (
	"time"
)

// Outcome is the terminal state of one source within a tick.
type Outcome string

const (
	OutcomeUpdated     Outcome = "updated"
	OutcomeNotDue      Outcome = "not_due"
	OutcomeNoProgram   Outcome = "no_program"
	OutcomeUnavailable Outcome = "unavailable"
	OutcomeEmpty       Outcome = "empty"
	OutcomeFailed      Outcome = "failed"
)

// SourceResult describes what a tick did with one source.
type SourceResult struct {
	Source  string  `json:"source"`
	Outcome Outcome `json:"outcome"`
	Items   int     `json:"items,omitempty"`
	Dropped int     `json:"dropped,omitempty"`
	Error   string  `json:"error,omitempty"`
}

// TickReport is the payload of the feeds-refreshed event. Updated is the set
// of sources refreshed by this tick only.
type TickReport struct {
	ID         string             `json:"id"`
	StartedAt  time.Time          `json:"startedAt"`
	FinishedAt time.Time          `json:"finishedAt"`
	Forced     []string           `json:"forced,omitempty"`
	Updated    []string           `json:"updated"`
	Skipped    map[string]Outcome `json:"skipped"`
	Failed     map[string]string  `json:"failed"`
	Results    []SourceResult     `json:"results"`
}

func newReport(id string, started time.Time, forced []string) *TickReport {
	return &TickReport{
		ID:        id,
		StartedAt: started,
		Forced:    forced,
		Updated:   []string{},
		Skipped:   make(map[string]Outcome),
		Failed:    make(map[string]string),
	}
}

// collect folds per-source results, kept in table order, into the report.
func (r *TickReport) collect(results []SourceResult) {
	r.Results = results
	for _, res := range results {
		switch res.Outcome {
		case OutcomeUpdated:
			r.Updated = append(r.Updated, res.Source)
		case OutcomeFailed:
			r.Failed[res.Source] = res.Error
		default:
			r.Skipped[res.Source] = res.Outcome
		}
	}
}

// Duration is the tick's wall time.
func (r *TickReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
