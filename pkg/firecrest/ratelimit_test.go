package firecrest_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/firecrest-hpc/firecrest_sdk_go/pkg/firecrest"
)

func TestLimiterDefaults(t *testing.T) {
	l := firecrest.NewLimiter()
	require.Equal(t, firecrest.DefaultCallInterval, l.Interval(firecrest.CategoryCompute))
	require.Equal(t, firecrest.DefaultCallInterval, l.Interval(firecrest.CategoryTasks))

	l.SetInterval(firecrest.CategoryTasks, 100*time.Millisecond)
	require.Equal(t, 100*time.Millisecond, l.Interval(firecrest.CategoryTasks))
	require.Equal(t, firecrest.DefaultCallInterval, l.Interval(firecrest.CategoryCompute))
}

func TestLimiterSpacesConsecutiveCalls(t *testing.T) {
	const interval = 50 * time.Millisecond
	l := firecrest.NewLimiter()
	l.SetInterval(firecrest.CategoryTasks, interval)

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(ctx, firecrest.CategoryTasks))
	}
	// First call is free, the next two wait one interval each.
	require.GreaterOrEqual(t, time.Since(start), 2*interval)
}

func TestLimiterZeroIntervalDoesNotWait(t *testing.T) {
	l := firecrest.NewLimiter()
	l.SetInterval(firecrest.CategoryStatus, 0)

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(ctx, firecrest.CategoryStatus))
	}
	require.Less(t, time.Since(start), time.Second)
}

func TestLimiterCategoriesAreIndependent(t *testing.T) {
	l := firecrest.NewLimiter()
	l.SetInterval(firecrest.CategoryTasks, time.Hour)
	l.SetInterval(firecrest.CategoryStatus, 0)

	ctx := context.Background()
	require.NoError(t, l.Wait(ctx, firecrest.CategoryTasks))

	// The tasks slot is taken for an hour; status must not be affected.
	start := time.Now()
	require.NoError(t, l.Wait(ctx, firecrest.CategoryStatus))
	require.NoError(t, l.Wait(ctx, firecrest.CategoryStatus))
	require.Less(t, time.Since(start), time.Second)
}

func TestLimiterCancelledWaitKeepsSlot(t *testing.T) {
	const interval = 300 * time.Millisecond
	l := firecrest.NewLimiter()
	l.SetInterval(firecrest.CategoryStorage, interval)

	start := time.Now()
	require.NoError(t, l.Wait(context.Background(), firecrest.CategoryStorage))

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, l.Wait(cancelled, firecrest.CategoryStorage), context.Canceled)

	// The abandoned wait must not have pushed the slot further out: the
	// next caller is released one interval after the first claim, not two.
	require.NoError(t, l.Wait(context.Background(), firecrest.CategoryStorage))
	elapsed := time.Since(start)
	require.GreaterOrEqual(t, elapsed, interval)
	require.Less(t, elapsed, 2*interval)
}

func TestLimiterSerializesConcurrentWaiters(t *testing.T) {
	const interval = 50 * time.Millisecond
	l := firecrest.NewLimiter()
	l.SetInterval(firecrest.CategoryCompute, interval)

	var mu sync.Mutex
	var released []time.Time
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, l.Wait(context.Background(), firecrest.CategoryCompute))
			mu.Lock()
			released = append(released, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Slice(released, func(i, j int) bool { return released[i].Before(released[j]) })
	for i := 1; i < len(released); i++ {
		gap := released[i].Sub(released[i-1])
		require.GreaterOrEqual(t, gap, interval-10*time.Millisecond, "waiters %d and %d released %v apart", i-1, i, gap)
	}
}
