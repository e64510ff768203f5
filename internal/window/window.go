// Package window plans the per-day search windows of a collection run.
package window

import (
	"time"

	"tweet_fetcher/internal/domain"
)

const (
	// LookbackPad keeps the oldest window clear of the API's hard look-back limit.
	LookbackPad = time.Hour
	// SettleMargin keeps the newest window away from posts still being indexed.
	SettleMargin = time.Minute
)

const endOfDay = 24*time.Hour - time.Microsecond

// Plan returns the windows covering the last days calendar days plus the
// partial day reaching back to the look-back boundary, oldest first.
//
// Every window is aligned to UTC day boundaries; the oldest start is clamped to
// now-days+LookbackPad and the newest end to now-SettleMargin. Windows left
// empty by the clamping are dropped. days <= 0 yields nil.
func Plan(days int, now time.Time) []domain.SearchWindow {
	if days <= 0 {
		return nil
	}

	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	lookback := now.AddDate(0, 0, -days).Add(LookbackPad)
	latest := now.Add(-SettleMargin)

	windows := make([]domain.SearchWindow, 0, days+1)
	for offset := days; offset >= 0; offset-- {
		start := today.AddDate(0, 0, -offset)
		end := start.Add(endOfDay)

		if start.Before(lookback) {
			start = lookback
		}
		if end.After(latest) {
			end = latest
		}
		if !start.Before(end) {
			continue
		}

		windows = append(windows, domain.SearchWindow{Start: start, End: end})
	}

	return windows
}
