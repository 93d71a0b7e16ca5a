//go:build integration
// +build integration

package integration

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contentBreakerState(t *testing.T) string {
	t.Helper()

	var body struct {
		Breakers map[string]string `json:"breakers"`
	}
	getJSON(t, "/health", &body)
	return body.Breakers["content"]
}

func TestContentBreakerOpensAndRecovers(t *testing.T) {
	contentFail.Store(true)
	defer contentFail.Store(false)

	// Distinct limits keep each request out of the cache so every failure
	// reaches the platform.
	for _, path := range []string{"/feed?limit=31", "/feed?limit=32", "/feed?limit=33"} {
		code := getJSON(t, path, nil)
		assert.Equal(t, http.StatusBadRequest, code)
	}

	require.Equal(t, "open", contentBreakerState(t))

	// With the circuit open the gateway fails fast without calling out.
	before := postsHits.Load()
	code := getJSON(t, "/feed?limit=34", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, before, postsHits.Load())

	// After the reset timeout a half-open probe goes through, and a single
	// success closes the circuit again.
	contentFail.Store(false)
	require.Eventually(t, func() bool {
		return getJSON(t, "/feed?limit=35", nil) == http.StatusOK
	}, 3*time.Second, 50*time.Millisecond)

	assert.Equal(t, http.StatusOK, getJSON(t, "/feed?limit=36", nil))
	assert.Equal(t, "closed", contentBreakerState(t))
}

func TestBreakerFailureLeavesOtherServicesClosed(t *testing.T) {
	contentFail.Store(true)
	getJSON(t, "/feed?limit=61", nil)
	getJSON(t, "/feed?limit=62", nil)
	getJSON(t, "/feed?limit=63", nil)
	contentFail.Store(false)

	var body struct {
		Breakers map[string]string `json:"breakers"`
	}
	getJSON(t, "/health", &body)
	assert.Equal(t, "open", body.Breakers["content"])
	assert.Equal(t, "closed", body.Breakers["messaging"])
	assert.Equal(t, "closed", body.Breakers["notifications"])
	assert.Equal(t, "closed", body.Breakers["profiles"])

	// Notifications still flow while content is failing fast.
	var notif struct {
		Notifications []map[string]interface{} `json:"notifications"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, "/users/u1/notifications", &notif))
	require.Len(t, notif.Notifications, 1)

	// Let the content circuit close again before the next test.
	require.Eventually(t, func() bool {
		return getJSON(t, "/feed?limit=64", nil) == http.StatusOK
	}, 3*time.Second, 50*time.Millisecond)
}

func TestInvalidateCacheEndpoint(t *testing.T) {
	require.Equal(t, http.StatusOK, getJSON(t, "/feed?limit=45", nil))
	before := postsHits.Load()

	// Cached.
	require.Equal(t, http.StatusOK, getJSON(t, "/feed?limit=45", nil))
	require.Equal(t, before, postsHits.Load())

	var body map[string]interface{}
	code := postJSON(t, "/system/cache/invalidate", map[string]string{
		"pattern": "content:list",
	}, &body)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["invalidated"])

	// Entry is gone, so the next read goes back to the platform.
	require.Equal(t, http.StatusOK, getJSON(t, "/feed?limit=45", nil))
	assert.Equal(t, before+1, postsHits.Load())
}

func TestRecoveryEndpoint(t *testing.T) {
	var body map[string]interface{}
	code := postJSON(t, "/system/recovery", map[string]string{}, &body)

	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["completed"])
}

func TestReconnectEndpoint(t *testing.T) {
	var body map[string]interface{}
	code := postJSON(t, "/system/reconnect", map[string]string{}, &body)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["reconnected"])

	var status struct {
		Connection struct {
			Recreates float64 `json:"recreates"`
		} `json:"connection"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, "/status", &status))
	assert.GreaterOrEqual(t, status.Connection.Recreates, 1.0)
}
