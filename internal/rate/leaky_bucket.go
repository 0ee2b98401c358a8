package rate

import (
	"sync"
	"time"
)

// LeakyBucket spaces permits at a fixed rate.
//
// Unlike the token bucket, which asks "how many permits are available", the
// leaky bucket asks "when may the next permit be used". It keeps a virtual drip
// time that advances at the bucket rate. If callers fall behind, permits are
// issued immediately, up to maxBurst stored permits.
//
// # Thread Safety
//
// LeakyBucket is safe for concurrent use from multiple goroutines.
//
// # Example
//
//	lb := NewLeakyBucket(100.0) // 100 permits per second
//
//	for {
//	    time.Sleep(lb.Reserve(1))
//	    // send
//	}
type LeakyBucket struct {
	rate        float64   // Permits per second
	lastDrip    time.Time // Time the last scheduled permit became usable
	accumulated float64   // Stored permits (fractional)
	maxBurst    float64   // Maximum stored permits
	mu          sync.Mutex
}

// NewLeakyBucket creates a leaky bucket that does not burst.
//
// The bucket starts with one stored permit, so the first request is served
// immediately.
func NewLeakyBucket(rate float64) *LeakyBucket {
	return NewLeakyBucketWithBurst(rate, 1.0)
}

// NewLeakyBucketWithBurst creates a leaky bucket that stores up to maxBurst
// permits while callers are idle.
func NewLeakyBucketWithBurst(rate float64, maxBurst float64) *LeakyBucket {
	if maxBurst < 1.0 {
		maxBurst = 1.0
	}
	return &LeakyBucket{
		rate:        normalizeRate(rate),
		lastDrip:    time.Now(),
		accumulated: 1.0,
		maxBurst:    maxBurst,
	}
}

// Reserve implements Bucket.
func (lb *LeakyBucket) Reserve(n int) time.Duration {
	return lb.reserveAt(time.Now(), float64(normalizePermits(n)))
}

// TryReserve implements Bucket. Requests larger than the burst size never
// succeed.
func (lb *LeakyBucket) TryReserve(n int) bool {
	permits := float64(normalizePermits(n))

	lb.mu.Lock()
	defer lb.mu.Unlock()

	now := time.Now()
	lb.drip(now)
	if lb.accumulated < permits {
		return false
	}

	lb.accumulated -= permits
	if lb.lastDrip.Before(now) {
		lb.lastDrip = now
	}
	return true
}

// Rate implements Bucket.
func (lb *LeakyBucket) Rate() float64 {
	return lb.rate
}

// MaxBurst returns the maximum number of stored permits.
func (lb *LeakyBucket) MaxBurst() float64 {
	return lb.maxBurst
}

func (lb *LeakyBucket) reserveAt(now time.Time, permits float64) time.Duration {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.drip(now)

	if lb.accumulated >= permits {
		lb.accumulated -= permits
		if lb.lastDrip.Before(now) {
			lb.lastDrip = now
		}
		return 0
	}

	// Schedule from the later of now and the previous reservation so that
	// concurrent callers queue up behind each other.
	from := now
	if lb.lastDrip.After(now) {
		from = lb.lastDrip
	}
	deficit := permits - lb.accumulated
	lb.accumulated = 0

	next := from.Add(time.Duration(deficit / lb.rate * float64(time.Second)))

	// lastDrip moves to the scheduled time, not now, so waking up at next
	// does not count the same interval twice
	lb.lastDrip = next

	return next.Sub(now)
}

// drip must be called with mu held.
func (lb *LeakyBucket) drip(now time.Time) {
	elapsed := now.Sub(lb.lastDrip).Seconds()

	// lastDrip is in the future while reservations are outstanding
	if elapsed < 0 {
		return
	}

	lb.accumulated += elapsed * lb.rate
	if lb.accumulated > lb.maxBurst {
		lb.accumulated = lb.maxBurst
	}
	lb.lastDrip = now
}
