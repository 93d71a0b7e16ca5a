// Package testutil provides testing utilities and helpers for gateway tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// PlatformStub is an in-process stand-in for the hosted platform: a REST mux
// plus a realtime websocket endpoint that records joins and can push change
// frames to connected clients.
type PlatformStub struct {
	Server *httptest.Server
	Mux    *http.ServeMux

	mu     sync.Mutex
	conns  []*websocket.Conn
	topics []string
}

// NewPlatformStub starts a stub platform. Register REST handlers on Mux
// before issuing requests; the realtime endpoint is wired automatically.
// The caller owns the stub and must Close it.
func NewPlatformStub() *PlatformStub {
	s := &PlatformStub{Mux: http.NewServeMux()}
	upgrader := websocket.Upgrader{}

	s.Mux.HandleFunc("/realtime/v1/websocket", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()

		for {
			var frame struct {
				Topic string `json:"topic"`
				Event string `json:"event"`
			}
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			if frame.Event == "join" {
				s.mu.Lock()
				s.topics = append(s.topics, frame.Topic)
				s.mu.Unlock()
			}
		}
	})

	s.Server = httptest.NewServer(s.Mux)
	return s
}

// Close shuts down the realtime connections and the HTTP server.
func (s *PlatformStub) Close() {
	s.mu.Lock()
	for _, c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()
	s.Server.Close()
}

// URL returns the stub's base URL.
func (s *PlatformStub) URL() string {
	return s.Server.URL
}

// PushEvent sends a change frame on a topic to every realtime client.
func (s *PlatformStub) PushEvent(t *testing.T, topic, event, table string, payload interface{}) {
	t.Helper()

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	frame := map[string]interface{}{
		"topic":   topic,
		"event":   event,
		"table":   table,
		"payload": json.RawMessage(data),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		if err := c.WriteJSON(frame); err != nil {
			t.Fatalf("push frame: %v", err)
		}
	}
}

// JoinedTopics returns every topic joined so far, in order.
func (s *PlatformStub) JoinedTopics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.topics...)
}

// RespondJSON writes v as a JSON response.
func RespondJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// TestPost builds one post row as the platform would return it.
func TestPost(id, author, title string) map[string]interface{} {
	return map[string]interface{}{
		"id":         id,
		"author_id":  author,
		"title":      title,
		"body":       "body of " + title,
		"like_count": 0,
		"created_at": time.Now().UTC().Format(time.RFC3339),
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	}
}

// TestProfile builds one profile row as the platform would return it.
func TestProfile(id, username string) map[string]interface{} {
	return map[string]interface{}{
		"id":           id,
		"username":     username,
		"display_name": username,
		"bio":          "",
		"avatar_url":   "",
		"joined_at":    time.Now().UTC().Format(time.RFC3339),
	}
}

// TestNotification builds one notification row.
func TestNotification(id, userID, kind string) map[string]interface{} {
	return map[string]interface{}{
		"id":         id,
		"user_id":    userID,
		"kind":       kind,
		"subject":    "subject",
		"seen":       false,
		"created_at": time.Now().UTC().Format(time.RFC3339),
	}
}
