package pool_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sleroy/komea-salesforce-connector/internal/pool"
)

func TestMap_KeepsOrder(t *testing.T) {
	items := []int{5, 1, 4, 2, 3}
	got := pool.Map(context.Background(), 3, items, func(_ context.Context, n int) int {
		time.Sleep(time.Duration(n) * time.Millisecond)
		return n * 10
	})
	assert.Equal(t, []int{50, 10, 40, 20, 30}, got)
}

func TestMap_BoundsConcurrency(t *testing.T) {
	var inFlight, peak int32
	items := make([]int, 40)

	pool.Map(context.Background(), 4, items, func(_ context.Context, _ int) struct{} {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return struct{}{}
	})

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(4))
	assert.Equal(t, int32(0), atomic.LoadInt32(&inFlight))
}

func TestMap_FailuresAreIndependent(t *testing.T) {
	var calls int32
	items := []string{"ok", "fail", "ok", "fail", "ok"}
	got := pool.Map(context.Background(), 2, items, func(_ context.Context, s string) error {
		atomic.AddInt32(&calls, 1)
		if s == "fail" {
			return errors.New("boom")
		}
		return nil
	})

	assert.Equal(t, int32(len(items)), atomic.LoadInt32(&calls))
	assert.NoError(t, got[0])
	assert.Error(t, got[1])
	assert.NoError(t, got[4])
}

func TestMap_Empty(t *testing.T) {
	got := pool.Map(context.Background(), 0, []int(nil), func(_ context.Context, n int) int { return n })
	assert.Empty(t, got)
}
