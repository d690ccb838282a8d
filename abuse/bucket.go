// Package abuse protects the event bus from flooding clients.
// It provides a per-session leaky bucket and a process-wide ban registry.
package abuse

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultCapacity    = 10
	DefaultRefill      = 5
	DefaultInterval    = time.Second
	DefaultBanDuration = 10 * time.Second
)

// Bucket is a leaky bucket: it starts full, drains one token per message and
// refills continuously at refill tokens per interval, up to capacity.
// A Bucket belongs to a single session.
type Bucket struct {
	limiter *rate.Limiter
}

func NewBucket(capacity, refill int, interval time.Duration) *Bucket {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if refill <= 0 || interval <= 0 {
		refill, interval = DefaultRefill, DefaultInterval
	}
	every := interval / time.Duration(refill)
	return &Bucket{limiter: rate.NewLimiter(rate.Every(every), capacity)}
}

// Balance returns the tokens available now, refill included. It never blocks.
func (b *Bucket) Balance() float64 {
	return b.limiter.Tokens()
}

// AcquireOne consumes one token, waiting for it to accrue when the balance is below one.
func (b *Bucket) AcquireOne(ctx context.Context) error {
	return b.limiter.Wait(ctx)
}

func (b *Bucket) balanceAt(t time.Time) float64 {
	return b.limiter.TokensAt(t)
}

func (b *Bucket) acquireAt(t time.Time) bool {
	return b.limiter.AllowN(t, 1)
}
