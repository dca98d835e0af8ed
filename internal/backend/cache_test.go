package backend

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type manualClock struct{ t time.Time }

func (c *manualClock) Now() time.Time { return c.t }

func newTestCache(ttl time.Duration) (*Cache, *manualClock) {
	clock := &manualClock{t: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)}
	c := NewCache(ttl)
	c.now = clock.Now
	return c, clock
}

func TestNewCache_DefaultTTL(t *testing.T) {
	require.Equal(t, DefaultCacheTTL, NewCache(0).TTL())
	require.Equal(t, time.Minute, NewCache(time.Minute).TTL())
}

func TestCache_Expiry(t *testing.T) {
	c, clock := newTestCache(10 * time.Second)
	c.Set("k", 1)

	v, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, 1, v)

	clock.t = clock.t.Add(9 * time.Second)
	_, ok = c.Get("k")
	require.True(t, ok)

	clock.t = clock.t.Add(time.Second)
	_, ok = c.Get("k")
	require.False(t, ok)
}

func TestCache_InvalidateAll(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.InvalidateAll()

	_, ok := c.Get("a")
	require.False(t, ok)
	_, ok = c.Get("b")
	require.False(t, ok)
}

func TestCache_FetchDoesNotCacheErrors(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	calls := 0
	fail := errors.New("nope")

	_, err := c.Fetch(context.Background(), "k", func(context.Context) (any, error) {
		calls++
		return nil, fail
	})
	require.ErrorIs(t, err, fail)

	v, err := c.Fetch(context.Background(), "k", func(context.Context) (any, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", v)
	require.Equal(t, 2, calls)
}

func TestCache_FetchCollapsesConcurrentMisses(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.Fetch(context.Background(), "k", func(context.Context) (any, error) {
				calls.Add(1)
				<-release
				return 42, nil
			})
			require.NoError(t, err)
			require.Equal(t, 42, v)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), calls.Load())
}
