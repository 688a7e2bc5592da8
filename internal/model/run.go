package model

import "time"

// RunStatus represents the current state of a matching run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// MatchRun records one invocation of the matching pipeline for a document.
type MatchRun struct {
	ID           string     `json:"id"`
	DocumentID   string     `json:"document_id"`
	Status       RunStatus  `json:"status"`
	ItemCount    int        `json:"item_count"`
	MatchedCount int        `json:"matched_count"`
	SavedCount   int        `json:"saved_count"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// RunSummary tallies the outcome of a matching run.
type RunSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Matched    int `json:"matched"`
	Saved      int `json:"saved"`
}

// Summarize computes per-run tallies from a decision slice.
func Summarize(decisions []MatchDecision) RunSummary {
	s := RunSummary{Total: len(decisions)}
	for _, d := range decisions {
		if d.Success {
			s.Successful++
		}
		if d.Matched() {
			s.Matched++
		}
	}
	return s
}
