// Package rate provides the permit sources and the adaptive limiter that
// retunes them to follow an oscillator.
package rate

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// MinRate is the lowest rate, in permits per second, a bucket is created with.
const MinRate = 1.0

// Bucket issues permits at a fixed rate.
//
// A Bucket is never retuned. When the rate has to change a new Bucket is
// created, so wait time owed under the old rate is not carried into the new
// one.
type Bucket interface {
	// Reserve takes n permits and returns how long the caller has to wait
	// before using them.
	Reserve(n int) time.Duration

	// TryReserve takes n permits only if they are available without waiting.
	TryReserve(n int) bool

	// Rate returns the rate in permits per second.
	Rate() float64
}

// Factory creates a Bucket for the given rate.
type Factory func(rate float64) Bucket

// Algorithm names a Bucket implementation.
type Algorithm string

const (
	// TokenBucketAlgorithm allows short bursts and smooths the rate over a
	// second. It is the default.
	TokenBucketAlgorithm Algorithm = "token-bucket"

	// LeakyBucketAlgorithm spaces permits strictly 1/rate apart.
	LeakyBucketAlgorithm Algorithm = "leaky-bucket"
)

// ParseAlgorithm returns the algorithm with the given name. An empty name
// selects TokenBucketAlgorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(name))) {
	case "", TokenBucketAlgorithm, "token":
		return TokenBucketAlgorithm, nil
	case LeakyBucketAlgorithm, "leaky":
		return LeakyBucketAlgorithm, nil
	default:
		return "", fmt.Errorf("unknown rate limiting algorithm: %q", name)
	}
}

// NewFactory returns a Factory for the algorithm.
//
// maxBurst is the number of permits a bucket can store. Zero selects the
// algorithm default: one second of permits for the token bucket and a single
// permit for the leaky bucket.
func NewFactory(algorithm Algorithm, maxBurst float64) (Factory, error) {
	if maxBurst < 0 {
		return nil, fmt.Errorf("max burst cannot be negative: %v", maxBurst)
	}

	switch algorithm {
	case "", TokenBucketAlgorithm:
		return func(rate float64) Bucket {
			return NewTokenBucket(rate, int(maxBurst))
		}, nil
	case LeakyBucketAlgorithm:
		return func(rate float64) Bucket {
			if maxBurst == 0 {
				return NewLeakyBucket(rate)
			}
			return NewLeakyBucketWithBurst(rate, maxBurst)
		}, nil
	default:
		return nil, fmt.Errorf("unknown rate limiting algorithm: %q", algorithm)
	}
}

func normalizeRate(rate float64) float64 {
	if math.IsNaN(rate) || rate < MinRate {
		return MinRate
	}
	return rate
}

func normalizePermits(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
