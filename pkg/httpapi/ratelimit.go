// Copyright 2025 Certen Protocol
package httpapi

import (
	"net/http"
	"sync"
	"time"
)

// tokenBucket is a single shared rate limiter for the HTTP surface:
// refilled at ratePerSec, holding at most burst tokens. A public-facing
// status endpoint needs protection from scrapers, not per-client
// fairness, so one bucket for the whole listener is enough.
type tokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	burst      float64
	ratePerSec float64
	last       time.Time
	now        func() time.Time
}

func newTokenBucket(ratePerSec, burst int) *tokenBucket {
	b := &tokenBucket{
		tokens:     float64(burst),
		burst:      float64(burst),
		ratePerSec: float64(ratePerSec),
		now:        time.Now,
	}
	b.last = b.now()
	return b
}

func (b *tokenBucket) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	b.tokens += now.Sub(b.last).Seconds() * b.ratePerSec
	if b.tokens > b.burst {
		b.tokens = b.burst
	}
	b.last = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// rateLimit wraps a handler with the bucket; exceeded requests get 429.
func rateLimit(bucket *tokenBucket, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !bucket.allow() {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
