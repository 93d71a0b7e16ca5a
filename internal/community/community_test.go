package community

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/circlehq/circle-go/internal/cache"
	"github.com/circlehq/circle-go/internal/connection"
	"github.com/circlehq/circle-go/internal/infrastructure/monitoring"
	"github.com/circlehq/circle-go/internal/infrastructure/resilience"
	"github.com/circlehq/circle-go/internal/infrastructure/tracing"
	"github.com/circlehq/circle-go/internal/platform"
)

// Registered once per test binary; promauto uses the global registry.
var testMetrics = monitoring.NewMetrics()

// newStack wires a connection manager and cache against an in-process
// platform stub. The realtime dial fails against the stub, which is fine;
// the REST path is what these tests exercise.
func newStack(t *testing.T, handler http.Handler) (*httptest.Server, *connection.Manager, *cache.Manager) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	factory := func(ctx context.Context) (*platform.Client, error) {
		return platform.New(platform.Config{
			URL:          srv.URL,
			Key:          "test-key",
			RetryWaitMin: time.Millisecond,
			RetryWaitMax: 2 * time.Millisecond,
		}, nil)
	}

	conns, err := connection.NewManager(context.Background(), factory, connection.Config{}, nil)
	require.NoError(t, err)
	t.Cleanup(conns.Destroy)

	cacheMgr, err := cache.NewManager(cache.Config{}, conns, nil)
	require.NoError(t, err)
	t.Cleanup(cacheMgr.Destroy)

	return srv, conns, cacheMgr
}

func writeJSON(t *testing.T, w http.ResponseWriter, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestContentListPostsCaches(t *testing.T) {
	var hits atomic.Int64
	posts := []Post{
		{ID: "p1", AuthorID: "u1", Title: "hello", CreatedAt: time.Now()},
		{ID: "p2", AuthorID: "u2", Title: "world", CreatedAt: time.Now()},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v1/posts", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "test-key", r.Header.Get("apikey"))
		assert.Equal(t, "created_at.desc", r.URL.Query().Get("order"))
		writeJSON(t, w, posts)
	})

	_, conns, cacheMgr := newStack(t, mux)
	svc := NewContent(conns, cacheMgr, Config{}, nil)

	got, err := svc.ListPosts(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p1", got[0].ID)

	// Second read is served from cache without touching the platform.
	got, err = svc.ListPosts(context.Background(), 20)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, int64(1), hits.Load())
}

func TestContentGetPostNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v1/posts", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []Post{})
	})

	_, conns, cacheMgr := newStack(t, mux)
	svc := NewContent(conns, cacheMgr, Config{}, nil)

	_, err := svc.GetPost(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestContentCreateInvalidatesList(t *testing.T) {
	var listHits atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v1/posts", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			assert.Equal(t, "return=representation", r.Header.Get("Prefer"))
			writeJSON(t, w, []Post{{ID: "p3", AuthorID: "u1", Title: "new"}})
			return
		}
		listHits.Add(1)
		writeJSON(t, w, []Post{{ID: "p3"}})
	})

	_, conns, cacheMgr := newStack(t, mux)
	svc := NewContent(conns, cacheMgr, Config{}, nil)

	_, err := svc.ListPosts(context.Background(), 20)
	require.NoError(t, err)

	created, err := svc.CreatePost(context.Background(), "u1", "new", "body")
	require.NoError(t, err)
	assert.Equal(t, "p3", created.ID)

	// The list cache was dropped, so this read hits the platform again.
	_, err = svc.ListPosts(context.Background(), 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), listHits.Load())
}

func TestContentLikeCallsRPC(t *testing.T) {
	var rpcBody map[string]string

	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v1/rpc/like_post", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&rpcBody))
		w.WriteHeader(http.StatusNoContent)
	})

	_, conns, cacheMgr := newStack(t, mux)
	svc := NewContent(conns, cacheMgr, Config{}, nil)

	require.NoError(t, svc.Like(context.Background(), "p1", "u9"))
	assert.Equal(t, "p1", rpcBody["post_id"])
	assert.Equal(t, "u9", rpcBody["user_id"])
}

func TestContentBreakerTripsOnRepeatedFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v1/posts", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	})

	_, conns, cacheMgr := newStack(t, mux)
	svc := NewContent(conns, cacheMgr, Config{}, nil)

	// Distinct limits defeat the cache so every call reaches the breaker.
	for i := 1; i <= 3; i++ {
		_, err := svc.ListPosts(context.Background(), i)
		require.Error(t, err)
	}

	_, err := svc.ListPosts(context.Background(), 4)
	require.ErrorIs(t, err, resilience.ErrCircuitOpen, "breaker should fast-fail after the threshold")
}

func TestContentCountsPlatformCalls(t *testing.T) {
	var fail atomic.Bool

	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v1/posts", func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "induced failure", http.StatusBadRequest)
			return
		}
		writeJSON(t, w, []Post{{ID: "p1"}})
	})

	_, conns, cacheMgr := newStack(t, mux)
	tracer := tracing.New("test", zap.NewNop())
	svc := NewContent(conns, cacheMgr, Config{Metrics: testMetrics, Tracer: tracer}, nil)

	okCalls := testMetrics.PlatformCalls.WithLabelValues("content", "list_posts", "ok")
	errCalls := testMetrics.PlatformCalls.WithLabelValues("content", "list_posts", "error")
	openCalls := testMetrics.PlatformCalls.WithLabelValues("content", "list_posts", "circuit_open")

	okBefore := testutil.ToFloat64(okCalls)
	errBefore := testutil.ToFloat64(errCalls)
	openBefore := testutil.ToFloat64(openCalls)

	_, err := svc.ListPosts(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, okBefore+1, testutil.ToFloat64(okCalls))

	// A cached read never reaches the platform, so no new sample.
	_, err = svc.ListPosts(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, okBefore+1, testutil.ToFloat64(okCalls))

	// Distinct limits defeat the cache so every failure reaches the breaker.
	fail.Store(true)
	for i := 11; i <= 13; i++ {
		_, err = svc.ListPosts(context.Background(), i)
		require.Error(t, err)
	}
	assert.Equal(t, errBefore+3, testutil.ToFloat64(errCalls))

	// Fast-fail rejections are recorded too.
	_, err = svc.ListPosts(context.Background(), 14)
	require.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, openBefore+1, testutil.ToFloat64(openCalls))
}

func TestMessagingSendInvalidates(t *testing.T) {
	var listHits atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v1/messages", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			writeJSON(t, w, []Message{{ID: "m2", ConversationID: "c1", SenderID: "u1", Body: "hi"}})
			return
		}
		listHits.Add(1)
		writeJSON(t, w, []Message{{ID: "m1", ConversationID: "c1"}})
	})

	_, conns, cacheMgr := newStack(t, mux)
	svc := NewMessaging(conns, cacheMgr, Config{}, nil)

	msgs, err := svc.ListMessages(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	sent, err := svc.Send(context.Background(), "c1", "u1", "hi")
	require.NoError(t, err)
	assert.Equal(t, "m2", sent.ID)

	_, err = svc.ListMessages(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), listHits.Load())
}

func TestNotificationsMarkSeen(t *testing.T) {
	var patched bool

	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v1/notifications", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPatch {
			patched = true
			assert.Equal(t, "in.(n1,n2)", r.URL.Query().Get("id"))
			writeJSON(t, w, []Notification{})
			return
		}
		writeJSON(t, w, []Notification{{ID: "n1", UserID: "u1"}})
	})

	_, conns, cacheMgr := newStack(t, mux)
	svc := NewNotifications(conns, cacheMgr, Config{}, nil)

	unseen, err := svc.ListUnseen(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, unseen, 1)

	require.NoError(t, svc.MarkSeen(context.Background(), "u1", []string{"n1", "n2"}))
	assert.True(t, patched)
}

func TestProfilesGetProfile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v1/profiles", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "eq.u1", r.URL.Query().Get("id"))
		writeJSON(t, w, []Profile{{ID: "u1", Username: "ada"}})
	})

	_, conns, cacheMgr := newStack(t, mux)
	svc := NewProfiles(conns, cacheMgr, Config{}, nil)

	profile, err := svc.GetProfile(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "ada", profile.Username)
}
