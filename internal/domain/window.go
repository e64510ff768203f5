package domain

import "time"

// SearchWindow is a time range queried as one logical search job.
type SearchWindow struct {
	Start time.Time
	End   time.Time
}

// PageCursor is the continuation token of the search endpoint.
// The empty cursor means there are no further pages.
type PageCursor string

// Page is one search response, already mapped to records.
type Page struct {
	ResultCount int
	// HasNext is true when the response meta carried a next_token key, even a null one.
	HasNext bool
	Next    PageCursor
	Records []Record
	Stats   ExtractStats
}

// CollectStats holds statistics about a collection run.
type CollectStats struct {
	RunID     string
	Keyword   string
	Windows   int
	Requests  int
	Scanned   int
	Accepted  int
	Published int
	Extract   ExtractStats
	Duration  time.Duration
}

// RunState is the persisted bookkeeping of collection runs for a keyword.
type RunState struct {
	Keyword        string    `db:"keyword"`
	LastRunAt      time.Time `db:"last_run_at"`
	LastWindowEnd  time.Time `db:"last_window_end"`
	TotalCollected int64     `db:"total_collected"`
}
