package service

import (
	"time"

	"golang.org/x/time/rate"
)

// NewPacer returns a limiter admitting one request per interval. It is meant
// to be shared by every collector hitting the same API budget. The initial
// token is consumed so that the first wait already spans a full interval.
func NewPacer(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	l := rate.NewLimiter(rate.Every(interval), 1)
	l.Allow()
	return l
}
