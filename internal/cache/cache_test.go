// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNow struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeNow) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeNow) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

func TestMemoryCacheSetGet(t *testing.T) {
	ctx := context.Background()
	clk := &fakeNow{t: time.Unix(1_700_000_000, 0)}
	c := newMemoryCache(0, clk.now)
	defer c.Close()

	c.Set(ctx, "movie:1", []byte(`{"title":"Inception"}`), time.Minute)

	got, ok := c.Get(ctx, "movie:1")
	require.True(t, ok)
	assert.JSONEq(t, `{"title":"Inception"}`, string(got))

	_, ok = c.Get(ctx, "movie:2")
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Sets)
	assert.Equal(t, 1, stats.CurrentSize)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	clk := &fakeNow{t: time.Unix(1_700_000_000, 0)}
	c := newMemoryCache(0, clk.now)
	defer c.Close()

	c.Set(ctx, "a", []byte("1"), time.Minute)
	c.Set(ctx, "b", []byte("2"), time.Hour)
	clk.advance(2 * time.Minute)

	_, ok := c.Get(ctx, "a")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "b")
	assert.True(t, ok)

	assert.Equal(t, 1, c.deleteExpired())
	assert.Equal(t, int64(1), c.Stats().Evictions)
	assert.Equal(t, 1, c.Stats().CurrentSize)
}

func TestMemoryCacheCopiesValues(t *testing.T) {
	ctx := context.Background()
	c := newMemoryCache(0, time.Now)
	defer c.Close()

	v := []byte("abc")
	c.Set(ctx, "k", v, time.Minute)
	v[0] = 'z'

	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "abc", string(got))
}

func TestMemoryCacheDeleteAndClear(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)
	defer c.Close()

	c.Set(ctx, "a", []byte("1"), time.Minute)
	c.Set(ctx, "b", []byte("2"), time.Minute)
	c.Set(ctx, "c", []byte("3"), time.Minute)

	c.Delete(ctx, "a", "b")
	assert.Equal(t, 1, c.Stats().CurrentSize)
	c.Clear(ctx)
	assert.Equal(t, 0, c.Stats().CurrentSize)
}

func TestMemoryCacheJanitorStops(t *testing.T) {
	c := NewMemoryCache(time.Millisecond)
	done := make(chan struct{})
	go func() {
		_ = c.Close()
		_ = c.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not stop the janitor")
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)
	defer c.Close()

	type link struct {
		URL   string `json:"url"`
		Title string `json:"title"`
	}
	SetJSON(ctx, c, "dl:1", link{URL: "https://cdn.example/1.mp4", Title: "One"}, time.Minute)

	got, ok := GetJSON[link](ctx, c, "dl:1")
	require.True(t, ok)
	assert.Equal(t, "One", got.Title)

	c.Set(ctx, "broken", []byte("{"), time.Minute)
	_, ok = GetJSON[link](ctx, c, "broken")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "broken")
	assert.False(t, ok, "undecodable entries are dropped")
}

func TestNoOpCache(t *testing.T) {
	ctx := context.Background()
	c := NewNoOpCache()
	c.Set(ctx, "k", []byte("v"), time.Minute)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, CacheStats{}, c.Stats())
	assert.NoError(t, c.Close())
}
