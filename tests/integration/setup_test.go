//go:build integration
// +build integration

package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/circlehq/circle-go/internal/infrastructure/config"
	"github.com/circlehq/circle-go/internal/infrastructure/server"
	"github.com/circlehq/circle-go/tests/helpers/testutil"
)

// One gateway per test binary: the Prometheus collectors register on the
// global registry, so a second server.NewServer would panic.
var (
	stub    *testutil.PlatformStub
	gateway *httptest.Server

	// contentFail makes every posts request fail with a 400 so the content
	// breaker can be tripped and recovered on demand.
	contentFail atomic.Bool
	// postsHits counts GET requests the stub actually served for posts.
	postsHits atomic.Int64

	postsMu sync.Mutex
	posts   []map[string]interface{}
)

func TestMain(m *testing.M) {
	stub = testutil.NewPlatformStub()

	posts = []map[string]interface{}{
		testutil.TestPost("p1", "u1", "hello world"),
		testutil.TestPost("p2", "u2", "second post"),
	}

	stub.Mux.HandleFunc("/rest/v1/posts", func(w http.ResponseWriter, r *http.Request) {
		if contentFail.Load() {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, "induced failure")
			return
		}
		switch r.Method {
		case http.MethodGet:
			postsHits.Add(1)
			postsMu.Lock()
			rows := append([]map[string]interface{}(nil), posts...)
			postsMu.Unlock()
			testutil.RespondJSON(w, rows)
		case http.MethodPost:
			var body map[string]interface{}
			json.NewDecoder(r.Body).Decode(&body)
			row := testutil.TestPost("p-new", body["author_id"].(string), body["title"].(string))
			postsMu.Lock()
			posts = append([]map[string]interface{}{row}, posts...)
			postsMu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode([]interface{}{row})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	stub.Mux.HandleFunc("/rest/v1/rpc/like_post", func(w http.ResponseWriter, r *http.Request) {
		testutil.RespondJSON(w, map[string]interface{}{})
	})

	stub.Mux.HandleFunc("/rest/v1/notifications", func(w http.ResponseWriter, r *http.Request) {
		testutil.RespondJSON(w, []interface{}{
			testutil.TestNotification("n1", "u1", "mention"),
		})
	})

	// Everything else, including the liveness probe on the REST root,
	// answers with an empty row set.
	stub.Mux.HandleFunc("/rest/v1/", func(w http.ResponseWriter, r *http.Request) {
		testutil.RespondJSON(w, []interface{}{})
	})

	cfg := config.Default()
	cfg.Platform.URL = stub.URL()
	cfg.Platform.Key = "test-key"
	cfg.Breaker.FailureThreshold = 3
	cfg.Breaker.SuccessThreshold = 1
	cfg.Breaker.ResetTimeout = 150 * time.Millisecond
	cfg.RateLimit.Enabled = false

	srv, err := server.NewServer(cfg)
	if err != nil {
		stub.Close()
		panic(err)
	}
	gateway = httptest.NewServer(srv.Handler())

	code := m.Run()

	gateway.Close()
	srv.Close()
	stub.Close()
	os.Exit(code)
}

func getJSON(t *testing.T, path string, out interface{}) int {
	t.Helper()

	resp, err := http.Get(gateway.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, path string, body, out interface{}) int {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(gateway.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp.StatusCode
}
