package rate

import (
	"math"
	"sync"
	"time"

	xrate "golang.org/x/time/rate"
)

// TokenBucket is a smooth, bursty permit source backed by
// golang.org/x/time/rate.
//
// Requests pay for the permits taken before them: a request is granted as
// soon as the debt left by earlier requests is repaid, and its own permits
// become debt for the next caller. A new bucket has no stored permits and no
// debt, so the first request of any size is served immediately. Unused
// capacity accumulates up to the burst size.
type TokenBucket struct {
	mu      sync.Mutex
	limiter *xrate.Limiter
	rate    float64
	burst   int
}

// NewTokenBucket creates a token bucket. A burst below 1 defaults to one
// second worth of permits.
func NewTokenBucket(rate float64, burst int) *TokenBucket {
	rate = normalizeRate(rate)
	if burst < 1 {
		burst = int(math.Ceil(rate))
	}

	// drain the initial full bucket so nothing is stored yet
	lim := xrate.NewLimiter(xrate.Limit(rate), burst)
	lim.ReserveN(time.Now(), burst)

	return &TokenBucket{
		limiter: lim,
		rate:    rate,
		burst:   burst,
	}
}

// Reserve implements Bucket. It returns the time until the debt of earlier
// reservations is repaid and charges n permits to whoever comes next.
func (tb *TokenBucket) Reserve(n int) time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	wait := tb.owed(now)
	tb.take(now, normalizePermits(n))
	return wait
}

// TryReserve implements Bucket. It succeeds whenever no debt is outstanding,
// whatever the number of permits.
func (tb *TokenBucket) TryReserve(n int) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	if tb.owed(now) > 0 {
		return false
	}
	tb.take(now, normalizePermits(n))
	return true
}

// owed returns how long the outstanding debt takes to repay at now.
func (tb *TokenBucket) owed(now time.Time) time.Duration {
	tokens := tb.limiter.TokensAt(now)
	if tokens >= 0 {
		return 0
	}
	return time.Duration(-tokens / tb.rate * float64(time.Second))
}

// take removes n permits, going into debt as far as needed. ReserveN accepts
// at most burst permits at a time.
func (tb *TokenBucket) take(now time.Time, n int) {
	for n > 0 {
		chunk := min(n, tb.burst)
		tb.limiter.ReserveN(now, chunk)
		n -= chunk
	}
}

// Rate implements Bucket.
func (tb *TokenBucket) Rate() float64 {
	return tb.rate
}

// Burst returns the number of permits the bucket can store.
func (tb *TokenBucket) Burst() int {
	return tb.burst
}

// Tokens returns the number of permits stored now. It is negative while debt
// is outstanding.
func (tb *TokenBucket) Tokens() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.limiter.Tokens()
}
