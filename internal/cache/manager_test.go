package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, policies map[Scope]Policy) *Manager {
	t.Helper()
	m, err := NewManager(Config{Policies: policies}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(m.Destroy)
	return m
}

func staticFetcher(v interface{}) Fetcher {
	return func(context.Context) (interface{}, error) { return v, nil }
}

func countingFetcher(v interface{}, calls *int32) Fetcher {
	return func(context.Context) (interface{}, error) {
		atomic.AddInt32(calls, 1)
		return v, nil
	}
}

func TestGetMissFetchesAndStores(t *testing.T) {
	m := newTestManager(t, nil)

	var calls int32
	v, err := m.Get(context.Background(), "content:list:recent", countingFetcher("posts", &calls), nil)
	require.NoError(t, err)
	assert.Equal(t, "posts", v)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// Fresh hit: the fetcher stays untouched.
	v, err = m.Get(context.Background(), "content:list:recent", countingFetcher("other", &calls), nil)
	require.NoError(t, err)
	assert.Equal(t, "posts", v)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSetThenGetSkipsFetcher(t *testing.T) {
	m := newTestManager(t, nil)

	m.Set("content:post:42", "cached post", nil)

	v, err := m.Get(context.Background(), "content:post:42", func(context.Context) (interface{}, error) {
		t.Fatal("fetcher must not run on a fresh hit")
		return nil, nil
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "cached post", v)
}

func TestStaleWhileRevalidate(t *testing.T) {
	policies := map[Scope]Policy{
		{Domain: "content", Resource: "list"}: {TTL: 10 * time.Millisecond, StaleWhileRevalidate: true},
	}
	m := newTestManager(t, policies)

	m.Set("content:list:a", "v1", nil)
	time.Sleep(25 * time.Millisecond)

	var calls int32
	release := make(chan struct{})
	slowFetcher := func(context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "v2", nil
	}

	// Stale entry: the old value returns immediately, one refresh starts.
	start := time.Now()
	v, err := m.Get(context.Background(), "content:list:a", slowFetcher, nil)
	require.NoError(t, err)
	assert.Equal(t, "v1", v)
	assert.Less(t, time.Since(start), 50*time.Millisecond, "stale serve must not await the fetcher")

	// The refresh runs on its own goroutine; wait for it to be pending
	// before probing, or the probe races the scheduler on one CPU.
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 1
	}, time.Second, time.Millisecond, "background refresh should start")

	// Concurrent stale get while the refresh is pending: no second fetch.
	v, err = m.Get(context.Background(), "content:list:a", slowFetcher, nil)
	require.NoError(t, err)
	assert.Equal(t, "v1", v)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	close(release)
	assert.Eventually(t, func() bool {
		v, err := m.Get(context.Background(), "content:list:a", staticFetcher("never"), nil)
		return err == nil && v == "v2"
	}, time.Second, 5*time.Millisecond, "refreshed value should land")
}

func TestStaleServeOnFetcherFailure(t *testing.T) {
	policies := map[Scope]Policy{
		{Domain: "content", Resource: "post"}: {TTL: time.Millisecond},
	}
	m := newTestManager(t, policies)

	m.Set("content:post:7", "stale but usable", nil)
	time.Sleep(5 * time.Millisecond)

	// No stale-while-revalidate: the refetch runs synchronously and fails;
	// the stale value still wins.
	v, err := m.Get(context.Background(), "content:post:7", func(context.Context) (interface{}, error) {
		return nil, errors.New("platform down")
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "stale but usable", v)
}

func TestMissErrorPropagates(t *testing.T) {
	m := newTestManager(t, nil)

	boom := errors.New("boom")
	_, err := m.Get(context.Background(), "content:list:x", func(context.Context) (interface{}, error) {
		return nil, boom
	}, nil)
	assert.ErrorIs(t, err, boom)
}

func TestInvalidateByPattern(t *testing.T) {
	m := newTestManager(t, nil)

	m.Set("content:list:x", 1, nil)
	m.Set("content:post:1", 2, nil)
	m.Set("messages:list:a", 3, nil)

	m.Invalidate("content")

	var calls int32
	_, err := m.Get(context.Background(), "content:list:x", countingFetcher("fresh", &calls), nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "invalidation forces a refetch")

	// Unrelated domain survives.
	v, err := m.Get(context.Background(), "messages:list:a", staticFetcher("never"), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}

func TestInvalidateGlob(t *testing.T) {
	m := newTestManager(t, nil)

	m.Set("content:list:recent", 1, nil)
	m.Set("content:list:top", 2, nil)
	m.Set("content:post:9", 3, nil)

	m.Invalidate("content:list:*")

	stats := m.GetStats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, uint64(2), stats.Invalidations)
}

func TestInvalidateAll(t *testing.T) {
	m := newTestManager(t, nil)

	m.Set("content:list:x", 1, nil)
	m.Set("profiles:profile:u1", 2, nil)

	m.Invalidate("")
	assert.Equal(t, 0, m.GetStats().Entries)
}

func TestPolicyOverrideForUnknownScope(t *testing.T) {
	m := newTestManager(t, map[Scope]Policy{})

	override := &Policy{TTL: time.Hour}
	m.Set("custom:thing:1", "kept", override)

	v, err := m.Get(context.Background(), "custom:thing:1", func(context.Context) (interface{}, error) {
		t.Fatal("override TTL should keep the entry fresh")
		return nil, nil
	}, override)
	require.NoError(t, err)
	assert.Equal(t, "kept", v)
}

func TestRunRecoveryCollectsFailures(t *testing.T) {
	m := newTestManager(t, nil)

	var mu sync.Mutex
	ran := map[string]bool{}
	mark := func(name string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			ran[name] = true
			mu.Unlock()
			return nil
		}
	}

	m.RegisterRevalidation("feed", mark("feed"))
	m.RegisterRevalidation("broken", func(context.Context) error {
		return errors.New("revalidation failed")
	})
	m.RegisterRevalidation("notifications", mark("notifications"))

	err := m.RunRecovery(context.Background())
	assert.Error(t, err, "failures surface in the combined error")
	assert.True(t, ran["feed"])
	assert.True(t, ran["notifications"], "one failure must not abort the rest")
}

func TestRunRecoverySweepsExpiredRealtimeEntries(t *testing.T) {
	policies := map[Scope]Policy{
		{Domain: "content", Resource: "list"}:          {TTL: time.Millisecond, StaleWhileRevalidate: true, Realtime: true},
		{Domain: "profiles", Resource: "achievements"}: {TTL: time.Millisecond},
	}
	m := newTestManager(t, policies)

	m.Set("content:list:x", 1, nil)
	m.Set("profiles:achievements:u1", 2, nil)
	time.Sleep(5 * time.Millisecond)

	require.NoError(t, m.RunRecovery(context.Background()))

	stats := m.GetStats()
	assert.Equal(t, 1, stats.Entries, "only realtime SWR scopes are swept")
}

func TestUnregisterRevalidation(t *testing.T) {
	m := newTestManager(t, nil)

	m.RegisterRevalidation("gone", func(context.Context) error {
		return errors.New("should never run")
	})
	m.UnregisterRevalidation("gone")

	assert.NoError(t, m.RunRecovery(context.Background()))
}
