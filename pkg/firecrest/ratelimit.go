package firecrest

import (
	"context"
	"sync"
	"time"

	"github.com/firecrest-hpc/firecrest_sdk_go/internal/httpx"
)

// Microservice categories used to tag outgoing requests. Each category is
// rate limited independently.
const (
	CategoryCompute     = "compute"
	CategoryReservation = "reservation"
	CategoryStatus      = "status"
	CategoryStorage     = "storage"
	CategoryTasks       = "tasks"
	CategoryUtilities   = "utilities"
)

// DefaultCallInterval is the minimum spacing between consecutive requests to
// the same microservice unless reconfigured per category.
const DefaultCallInterval = 5 * time.Second

var categories = []string{
	CategoryCompute,
	CategoryReservation,
	CategoryStatus,
	CategoryStorage,
	CategoryTasks,
	CategoryUtilities,
}

// Limiter enforces a minimum interval between consecutive request issue
// times per microservice category. A Limiter is created per client by
// default; passing the same Limiter to several clients via WithLimiter
// coordinates them.
type Limiter struct {
	mu       sync.Mutex
	interval map[string]time.Duration
	next     map[string]time.Time
}

// NewLimiter returns a Limiter with the default interval for every known
// category.
func NewLimiter() *Limiter {
	l := &Limiter{
		interval: make(map[string]time.Duration, len(categories)),
		next:     make(map[string]time.Time, len(categories)),
	}
	for _, c := range categories {
		l.interval[c] = DefaultCallInterval
	}
	return l
}

// SetInterval reconfigures the spacing for one category, effective on the
// next call. A non-positive d disables the wait for that category.
func (l *Limiter) SetInterval(category string, d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if d < 0 {
		d = 0
	}
	l.interval[category] = d
}

// Interval reports the configured spacing for one category.
func (l *Limiter) Interval(category string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.interval[category]
}

// Wait blocks until the category's slot is free, then claims it. The claimed
// timestamp records call-issue time; a wait abandoned through ctx leaves the
// category's timestamp untouched. Concurrent waiters on one category are
// released no closer than one interval apart.
func (l *Limiter) Wait(ctx context.Context, category string) error {
	for {
		l.mu.Lock()
		now := time.Now()
		next, ok := l.next[category]
		if !ok || !now.Before(next) {
			l.next[category] = now.Add(l.interval[category])
			l.mu.Unlock()
			return nil
		}
		delay := next.Sub(now)
		l.mu.Unlock()

		if err := httpx.Sleep(ctx, delay); err != nil {
			return err
		}
	}
}
