//go:build integration
// +build integration

package integration

import (
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/circlehq/circle-go/tests/helpers/testutil"
)

func TestRootEndpoint(t *testing.T) {
	var body map[string]interface{}
	code := getJSON(t, "/", &body)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "online", body["status"])
	assert.Equal(t, "Circle Gateway", body["service"])
}

func TestHealthReportsOnline(t *testing.T) {
	var body map[string]interface{}
	code := getJSON(t, "/health", &body)

	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "online", body["status"])

	breakers, ok := body["breakers"].(map[string]interface{})
	require.True(t, ok)
	for _, name := range []string{"content", "messaging", "notifications", "profiles"} {
		assert.Contains(t, breakers, name)
	}
}

func TestFeedServesAndCaches(t *testing.T) {
	before := postsHits.Load()

	var body struct {
		Posts []map[string]interface{} `json:"posts"`
	}
	code := getJSON(t, "/feed?limit=40", &body)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body.Posts, 2)
	assert.Equal(t, "p1", body.Posts[0]["id"])
	assert.Equal(t, before+1, postsHits.Load())

	// Same query again comes out of the cache without touching the platform.
	code = getJSON(t, "/feed?limit=40", &body)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, before+1, postsHits.Load())
}

func TestCreatePostInvalidatesFeed(t *testing.T) {
	var seeded struct {
		Posts []map[string]interface{} `json:"posts"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, "/feed?limit=41", &seeded))
	before := postsHits.Load()

	var created map[string]interface{}
	code := postJSON(t, "/posts", map[string]string{
		"author_id": "u9",
		"title":     "fresh post",
	}, &created)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "p-new", created["id"])

	// The write dropped the feed entries, so the next read refetches.
	var after struct {
		Posts []map[string]interface{} `json:"posts"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, "/feed?limit=41", &after))
	assert.Equal(t, before+1, postsHits.Load())
	assert.Equal(t, "p-new", after.Posts[0]["id"])
}

func TestCreatePostRejectsMissingFields(t *testing.T) {
	code := postJSON(t, "/posts", map[string]string{"title": "no author"}, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestMetricsEndpoint(t *testing.T) {
	resp, err := http.Get(gateway.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	buf := new(strings.Builder)
	_, err = io.Copy(buf, resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "gateway_http_requests_total")
}

func TestStreamSubscribeAndChange(t *testing.T) {
	wsURL := strings.Replace(gateway.URL, "http://", "ws://", 1) + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var welcome map[string]interface{}
	require.NoError(t, conn.ReadJSON(&welcome))
	assert.Equal(t, "system", welcome["type"])
	assert.NotEmpty(t, welcome["connection_id"])

	require.NoError(t, conn.WriteJSON(map[string]string{
		"type":   "subscribe",
		"domain": "posts",
	}))

	var subscribed map[string]interface{}
	require.NoError(t, conn.ReadJSON(&subscribed))
	require.Equal(t, "subscribed", subscribed["type"])
	assert.Equal(t, "posts", subscribed["domain"])

	// The gateway joins the domain topic upstream before events can flow.
	require.Eventually(t, func() bool {
		for _, topic := range stub.JoinedTopics() {
			if topic == "realtime:posts" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	stub.PushEvent(t, "realtime:posts", "insert", "posts", testutil.TestPost("p7", "u3", "pushed"))

	var change map[string]interface{}
	require.NoError(t, conn.ReadJSON(&change))
	assert.Equal(t, "change", change["type"])
	assert.Equal(t, "posts", change["domain"])
	assert.Equal(t, "insert", change["event"])
	assert.Equal(t, "posts", change["table"])
}

func TestStreamPing(t *testing.T) {
	wsURL := strings.Replace(gateway.URL, "http://", "ws://", 1) + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var welcome map[string]interface{}
	require.NoError(t, conn.ReadJSON(&welcome))

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))

	var pong map[string]interface{}
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, "pong", pong["type"])
}
