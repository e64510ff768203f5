package domain

import "time"

// AuthorLocation is the free-text profile location of an author.
// An empty Location means the author did not set one.
type AuthorLocation struct {
	AuthorID string
	Location string
}

// Location is a resolved author position.
type Location struct {
	Latitude  float64 `db:"latitude"`
	Longitude float64 `db:"longitude"`
	City      string  `db:"city"`
	Country   string  `db:"country"`
}

// ResolveStats counts resolution outcomes of a batch.
type ResolveStats struct {
	Resolved int
	Missed   int
	Empty    int
}

func (s *ResolveStats) Add(o ResolveStats) {
	s.Resolved += o.Resolved
	s.Missed += o.Missed
	s.Empty += o.Empty
}

// BackfillStats holds statistics about an author location backfill run.
type BackfillStats struct {
	RunID    string
	Authors  int
	Batches  int
	Resolve  ResolveStats
	Updated  int64
	Duration time.Duration
}
