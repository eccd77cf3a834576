package middleware

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const (
	minLimit  = 0.1
	backOffBy = 2.0
	recoverBy = 1.5
)

// RateLimiters keeps a rate limit per registry host.
//
// Use `*RateLimiters.RoundTripper(rt, host)` to obtain a rate limited
// HTTP transport for a registry. The RoundTripper reacts to a `HTTP
// 429 Too many requests` response by halving the limit for that host,
// at most once per RoundTripper, so a burst of 429s doesn't throttle
// the host down to nothing.
//
// Call `*RateLimiters.Recover(host)` when an operation has succeeded
// without incident; this raises the limit modestly back towards RPS.
type RateLimiters struct {
	RPS     float64
	Burst   int
	Logger  log.Logger
	perHost map[string]*rate.Limiter
	mu      sync.Mutex
}

func (limiters *RateLimiters) clip(limit float64) float64 {
	if limit < minLimit {
		return minLimit
	}
	if limit > limiters.RPS {
		return limiters.RPS
	}
	return limit
}

func (limiters *RateLimiters) log(keyvals ...interface{}) {
	if limiters.Logger != nil {
		limiters.Logger.Log(keyvals...)
	}
}

// limiter returns the host's limiter, creating it if need be. The
// caller must hold the lock.
func (limiters *RateLimiters) limiter(host string) *rate.Limiter {
	if limiters.perHost == nil {
		limiters.perHost = map[string]*rate.Limiter{}
	}
	rl, ok := limiters.perHost[host]
	if !ok {
		burst := limiters.Burst
		if burst < 1 {
			burst = 1
		}
		rl = rate.NewLimiter(rate.Limit(limiters.RPS), burst)
		limiters.perHost[host] = rl
	}
	return rl
}

func (limiters *RateLimiters) backOff(host string) {
	limiters.mu.Lock()
	defer limiters.mu.Unlock()

	limiter := limiters.limiter(host)
	oldLimit := float64(limiter.Limit())
	newLimit := limiters.clip(oldLimit / backOffBy)
	if oldLimit != newLimit {
		limiters.log("info", "reducing rate limit", "host", host, "limit", strconv.FormatFloat(newLimit, 'f', 2, 64))
	}
	limiter.SetLimit(rate.Limit(newLimit))
}

// Recover should be called when a use of a RoundTripper has
// succeeded, to bump the limit back up again.
func (limiters *RateLimiters) Recover(host string) {
	limiters.mu.Lock()
	defer limiters.mu.Unlock()
	limiter, ok := limiters.perHost[host]
	if !ok {
		return
	}
	oldLimit := float64(limiter.Limit())
	newLimit := limiters.clip(oldLimit * recoverBy)
	if newLimit != oldLimit {
		limiters.log("info", "increasing rate limit", "host", host, "limit", strconv.FormatFloat(newLimit, 'f', 2, 64))
	}
	limiter.SetLimit(rate.Limit(newLimit))
}

// Limit reports the current limit for a host, in requests per second.
func (limiters *RateLimiters) Limit(host string) float64 {
	limiters.mu.Lock()
	defer limiters.mu.Unlock()
	return float64(limiters.limiter(host).Limit())
}

// RoundTripper wraps rt with the rate limit for host.
func (limiters *RateLimiters) RoundTripper(rt http.RoundTripper, host string) http.RoundTripper {
	limiters.mu.Lock()
	rl := limiters.limiter(host)
	limiters.mu.Unlock()

	var reduceOnce sync.Once
	return &roundTripRateLimiter{
		rl: rl,
		tx: rt,
		slowDown: func() {
			reduceOnce.Do(func() { limiters.backOff(host) })
		},
	}
}

type roundTripRateLimiter struct {
	rl       *rate.Limiter
	tx       http.RoundTripper
	slowDown func()
}

func (t *roundTripRateLimiter) RoundTrip(r *http.Request) (*http.Response, error) {
	// Wait errors out if the request cannot be processed within
	// the deadline. This is pre-emptive, instead of waiting the
	// entire duration.
	if err := t.rl.Wait(r.Context()); err != nil {
		return nil, errors.Wrap(err, "rate limited")
	}
	resp, err := t.tx.RoundTrip(r)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		t.slowDown()
	}
	return resp, err
}
