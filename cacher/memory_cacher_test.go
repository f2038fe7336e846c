package cacher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type peer struct {
	Addr string
	Nick string
}

func TestNewMemoryCacher(t *testing.T) {
	c := NewMemoryCacher[string](time.Minute, 10*time.Minute)
	require.NotNil(t, c)

	mc, ok := c.(*MemoryCacher[string])
	require.True(t, ok)
	require.NotNil(t, mc.cache)
}

func TestMemoryCacher_Remember(t *testing.T) {
	ctx := context.Background()

	t.Run("first sighting is new", func(t *testing.T) {
		c := NewMemoryCacher[peer](cache.NoExpiration, time.Minute)

		added, err := c.Remember(ctx, "127.0.0.1:5000", peer{Addr: "127.0.0.1:5000", Nick: "Bob"}, time.Minute)
		require.NoError(t, err)
		assert.True(t, added)

		added, err = c.Remember(ctx, "127.0.0.1:5000", peer{Addr: "127.0.0.1:5000", Nick: "Bobby"}, time.Minute)
		require.NoError(t, err)
		assert.False(t, added)

		got, found, err := c.Lookup(ctx, "127.0.0.1:5000")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "Bobby", got.Nick, "second Remember refreshes the value")
	})

	t.Run("expired entry is new again", func(t *testing.T) {
		c := NewMemoryCacher[peer](cache.NoExpiration, time.Minute)

		added, err := c.Remember(ctx, "k", peer{Nick: "Bob"}, 20*time.Millisecond)
		require.NoError(t, err)
		assert.True(t, added)

		time.Sleep(40 * time.Millisecond)

		_, found, err := c.Lookup(ctx, "k")
		require.NoError(t, err)
		assert.False(t, found)

		added, err = c.Remember(ctx, "k", peer{Nick: "Bob"}, time.Minute)
		require.NoError(t, err)
		assert.True(t, added)
	})

	t.Run("zero ttl uses the default", func(t *testing.T) {
		c := NewMemoryCacher[string](20*time.Millisecond, time.Minute)

		_, err := c.Remember(ctx, "k", "v", 0)
		require.NoError(t, err)
		time.Sleep(40 * time.Millisecond)

		_, found, err := c.Lookup(ctx, "k")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("concurrent first sightings report one addition", func(t *testing.T) {
		c := NewMemoryCacher[string](cache.NoExpiration, time.Minute)

		var added atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ok, err := c.Remember(ctx, "shared", fmt.Sprintf("v%d", i), time.Minute)
				if err == nil && ok {
					added.Add(1)
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, int32(1), added.Load())
	})

	t.Run("cancelled context", func(t *testing.T) {
		c := NewMemoryCacher[string](cache.NoExpiration, time.Minute)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := c.Remember(cctx, "k", "v", time.Minute)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestMemoryCacher_LookupMissing(t *testing.T) {
	c := NewMemoryCacher[string](cache.NoExpiration, time.Minute)

	val, found, err := c.Lookup(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, val)
}

func TestMemoryCacher_ForgetLenClear(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCacher[int](cache.NoExpiration, time.Minute)

	for i := 0; i < 5; i++ {
		_, err := c.Remember(ctx, fmt.Sprintf("peer-%d", i), i, time.Minute)
		require.NoError(t, err)
	}

	n, err := c.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	require.NoError(t, c.Forget(ctx, "peer-0"))
	require.NoError(t, c.Forget(ctx, "not-there"))

	n, err = c.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	require.NoError(t, c.Clear(ctx))
	n, err = c.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, c.Forget(cctx, "k"), context.Canceled)
	assert.ErrorIs(t, c.Clear(cctx), context.Canceled)
	_, err = c.Len(cctx)
	assert.ErrorIs(t, err, context.Canceled)
}
