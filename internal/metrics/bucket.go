package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// TimeBucketStore stores time-bucketed metrics in a ring buffer.
//
// The store keeps a bounded number of buckets and discards the oldest when
// full. Sends are accumulated lock-free between buckets.
type TimeBucketStore struct {
	buckets    []*TimeBucket
	head       int // Next write position
	count      int // Current number of buckets
	maxBuckets int
	mu         sync.RWMutex

	lastBucketTime time.Time

	// Current interval accumulator
	currentSends    atomic.Int64
	currentFailures atomic.Int64
}

// NewTimeBucketStore creates a new time bucket store.
//
// For a 1-hour run with 1-second buckets, use maxBuckets=3600.
func NewTimeBucketStore(maxBuckets int) *TimeBucketStore {
	if maxBuckets <= 0 {
		maxBuckets = 3600 // Default: 1 hour of data
	}

	return &TimeBucketStore{
		buckets:        make([]*TimeBucket, maxBuckets),
		maxBuckets:     maxBuckets,
		lastBucketTime: time.Now(),
	}
}

// RecordSend records a send into the current interval accumulator.
func (tbs *TimeBucketStore) RecordSend(success bool) {
	tbs.currentSends.Add(1)
	if !success {
		tbs.currentFailures.Add(1)
	}
}

// BucketTotals are the cumulative values captured into a bucket.
type BucketTotals struct {
	Sends         int64
	Successes     int64
	Failures      int64
	Bytes         int64
	CommandedRate float64
	ActiveWorkers int
	Phase         Phase
}

// CreateBucket creates a new bucket from the totals and the interval
// accumulated since the previous bucket, then resets the accumulator.
func (tbs *TimeBucketStore) CreateBucket(totals BucketTotals, latencies LatencyPercentiles) *TimeBucket {
	tbs.mu.Lock()
	defer tbs.mu.Unlock()

	now := time.Now()

	intervalSends := tbs.currentSends.Swap(0)
	intervalFailures := tbs.currentFailures.Swap(0)

	intervalDuration := now.Sub(tbs.lastBucketTime).Seconds()
	if intervalDuration <= 0 {
		intervalDuration = 1.0
	}

	intervalErrorRate := 0.0
	if intervalSends > 0 {
		intervalErrorRate = float64(intervalFailures) / float64(intervalSends)
	}

	bucket := &TimeBucket{
		Timestamp:         now,
		TotalSends:        totals.Sends,
		TotalSuccesses:    totals.Successes,
		TotalFailures:     totals.Failures,
		TotalBytes:        totals.Bytes,
		IntervalSends:     intervalSends,
		IntervalSPS:       float64(intervalSends) / intervalDuration,
		CommandedRate:     totals.CommandedRate,
		LatencyMin:        latencies.Min,
		LatencyMax:        latencies.Max,
		LatencyP50:        latencies.P50,
		LatencyP90:        latencies.P90,
		LatencyP95:        latencies.P95,
		LatencyP99:        latencies.P99,
		ActiveWorkers:     totals.ActiveWorkers,
		Phase:             totals.Phase,
		IntervalErrorRate: intervalErrorRate,
	}

	tbs.buckets[tbs.head] = bucket
	tbs.head = (tbs.head + 1) % tbs.maxBuckets
	if tbs.count < tbs.maxBuckets {
		tbs.count++
	}
	tbs.lastBucketTime = now

	return bucket
}

// GetBuckets returns a copy of all buckets in chronological order.
func (tbs *TimeBucketStore) GetBuckets() []*TimeBucket {
	tbs.mu.RLock()
	defer tbs.mu.RUnlock()

	if tbs.count == 0 {
		return nil
	}

	result := make([]*TimeBucket, tbs.count)
	start := 0
	if tbs.count == tbs.maxBuckets {
		start = tbs.head
	}
	for i := 0; i < tbs.count; i++ {
		result[i] = tbs.buckets[(start+i)%tbs.maxBuckets]
	}

	return result
}

// GetBucketsForPhase returns buckets for a specific phase.
func (tbs *TimeBucketStore) GetBucketsForPhase(phase Phase) []*TimeBucket {
	var result []*TimeBucket
	for _, b := range tbs.GetBuckets() {
		if b.Phase == phase {
			result = append(result, b)
		}
	}
	return result
}

// GetRecentBuckets returns the N most recent buckets in chronological order.
func (tbs *TimeBucketStore) GetRecentBuckets(n int) []*TimeBucket {
	tbs.mu.RLock()
	defer tbs.mu.RUnlock()

	if n > tbs.count {
		n = tbs.count
	}
	if n <= 0 {
		return nil
	}

	result := make([]*TimeBucket, n)
	for i := 0; i < n; i++ {
		// head-1 is most recent
		idx := (tbs.head - 1 - i + tbs.maxBuckets) % tbs.maxBuckets
		result[n-1-i] = tbs.buckets[idx]
	}

	return result
}

// GetLatestBucket returns the most recent bucket, or nil if none.
func (tbs *TimeBucketStore) GetLatestBucket() *TimeBucket {
	recent := tbs.GetRecentBuckets(1)
	if len(recent) == 0 {
		return nil
	}
	return recent[0]
}

// Count returns the current number of buckets stored.
func (tbs *TimeBucketStore) Count() int {
	tbs.mu.RLock()
	defer tbs.mu.RUnlock()
	return tbs.count
}

// Reset clears all buckets and the interval accumulator.
func (tbs *TimeBucketStore) Reset() {
	tbs.mu.Lock()
	defer tbs.mu.Unlock()

	tbs.buckets = make([]*TimeBucket, tbs.maxBuckets)
	tbs.head = 0
	tbs.count = 0
	tbs.lastBucketTime = time.Now()

	tbs.currentSends.Store(0)
	tbs.currentFailures.Store(0)
}

// CalculateBroadcastSPS returns the average sends per second over the
// buckets created while broadcasting, and how many buckets that covers.
func (tbs *TimeBucketStore) CalculateBroadcastSPS() (float64, int) {
	buckets := tbs.GetBucketsForPhase(PhaseBroadcasting)
	if len(buckets) == 0 {
		return 0, 0
	}

	var total float64
	for _, b := range buckets {
		total += b.IntervalSPS
	}
	return total / float64(len(buckets)), len(buckets)
}
