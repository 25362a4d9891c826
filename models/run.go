package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// ExtractionRun is one batch pass over a site's discovered listings.
type ExtractionRun struct {
	ID                int64      `json:"id" db:"id"`
	SiteID            string     `json:"site_id" db:"site_id"`
	StartedAt         time.Time  `json:"started_at" db:"started_at"`
	FinishedAt        *time.Time `json:"finished_at" db:"finished_at"`
	Status            RunStatus  `json:"status" db:"status"`
	ListingsFound     int        `json:"listings_found" db:"listings_found"`
	ListingsExtracted int        `json:"listings_extracted" db:"listings_extracted"`
	ListingsFailed    int        `json:"listings_failed" db:"listings_failed"`
	ErrorsCount       int        `json:"errors_count" db:"errors_count"`
}

// Finish sets the terminal status from the per-listing counts.
func (r *ExtractionRun) Finish(now time.Time, cancelled bool) {
	r.FinishedAt = &now
	switch {
	case cancelled:
		r.Status = RunStatusCancelled
	case r.ListingsFound > 0 && r.ListingsExtracted == 0:
		r.Status = RunStatusFailed
	case r.ListingsFailed > 0:
		r.Status = RunStatusPartial
	default:
		r.Status = RunStatusCompleted
	}
}
