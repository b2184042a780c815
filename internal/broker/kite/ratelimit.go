package kite

import "golang.org/x/time/rate"

// NewRateLimiter allows perSecond requests per second with bursts of the
// same size. perSecond <= 0 disables limiting.
func NewRateLimiter(perSecond int) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(perSecond), perSecond)
}
