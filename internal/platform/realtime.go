package platform

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/circlehq/circle-go/internal/infrastructure/logging"
	"github.com/circlehq/circle-go/internal/shared/id"
)

// EventType classifies a change event. Payloads stay opaque; the event type
// and table name are the only fields the core inspects.
type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
	EventAll    EventType = "*"
)

// Event is one change notification from the platform's realtime feed.
type Event struct {
	Topic   string          `json:"topic"`
	Type    EventType       `json:"event"`
	Table   string          `json:"table"`
	Payload json.RawMessage `json:"payload"`
}

// Filter selects which events a subscription receives. Zero values match
// everything.
type Filter struct {
	Table string
	Event EventType
}

func (f Filter) matches(e Event) bool {
	if f.Table != "" && f.Table != e.Table {
		return false
	}
	if f.Event != "" && f.Event != EventAll && f.Event != e.Type {
		return false
	}
	return true
}

// frame is the wire shape of every realtime message, both directions.
type frame struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Table   string          `json:"table,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	frameJoin      = "join"
	frameLeave     = "leave"
	frameHeartbeat = "heartbeat"
)

type subscription struct {
	id     id.SubscriptionID
	filter Filter
	cb     func(Event)
}

// Channel groups subscriptions under one topic.
type Channel struct {
	topic string

	mu   sync.Mutex
	subs map[id.SubscriptionID]subscription
}

// Topic returns the channel topic.
func (ch *Channel) Topic() string {
	return ch.topic
}

// Subscribe registers a callback for events matching the filter and returns
// an unsubscribe function.
func (ch *Channel) Subscribe(f Filter, cb func(Event)) func() {
	sub := subscription{id: id.NewSubscription(), filter: f, cb: cb}

	ch.mu.Lock()
	ch.subs[sub.id] = sub
	ch.mu.Unlock()

	return func() {
		ch.mu.Lock()
		delete(ch.subs, sub.id)
		ch.mu.Unlock()
	}
}

func (ch *Channel) dispatch(e Event) {
	ch.mu.Lock()
	subs := make([]subscription, 0, len(ch.subs))
	for _, s := range ch.subs {
		subs = append(subs, s)
	}
	ch.mu.Unlock()

	for _, s := range subs {
		if s.filter.matches(e) {
			s.cb(e)
		}
	}
}

// Realtime is the websocket transport of a client handle. It is dialed once
// and never repaired in place; a dead transport is detected via IsConnected
// and replaced by recreating the whole handle.
type Realtime struct {
	url       string
	heartbeat time.Duration
	logger    *logging.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	channels  map[string]*Channel
	done      chan struct{}

	writeMu sync.Mutex
}

func newRealtime(url string, heartbeat time.Duration, logger *logging.Logger) *Realtime {
	return &Realtime{
		url:       url,
		heartbeat: heartbeat,
		logger:    logger,
		channels:  make(map[string]*Channel),
	}
}

// Connect dials the realtime endpoint, rejoins any channels registered while
// disconnected, and starts the read and heartbeat loops.
func (r *Realtime) Connect(ctx context.Context) error {
	r.mu.Lock()
	if r.connected {
		r.mu.Unlock()
		return nil
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, r.url, nil)
	if err != nil {
		r.mu.Unlock()
		return err
	}

	r.conn = conn
	r.connected = true
	r.done = make(chan struct{})
	done := r.done
	topics := make([]string, 0, len(r.channels))
	for topic := range r.channels {
		topics = append(topics, topic)
	}
	r.mu.Unlock()

	for _, topic := range topics {
		if err := r.write(frame{Topic: topic, Event: frameJoin}); err != nil {
			r.logger.Warn("rejoin failed", zap.String("topic", topic), zap.Error(err))
		}
	}

	go r.readLoop(conn, done)
	go r.heartbeatLoop(done)

	return nil
}

// IsConnected reports whether the transport currently holds a live socket.
func (r *Realtime) IsConnected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected
}

// Disconnect closes the socket and stops the loops. Channel registrations
// survive so a later Connect can rejoin them.
func (r *Realtime) Disconnect() error {
	r.mu.Lock()
	if !r.connected {
		r.mu.Unlock()
		return nil
	}
	r.connected = false
	conn := r.conn
	r.conn = nil
	close(r.done)
	r.done = nil
	r.mu.Unlock()

	r.writeMu.Lock()
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	r.writeMu.Unlock()

	return conn.Close()
}

// Channel returns the channel for a topic, creating and joining it if needed.
func (r *Realtime) Channel(topic string) *Channel {
	r.mu.Lock()
	ch, ok := r.channels[topic]
	if !ok {
		ch = &Channel{topic: topic, subs: make(map[id.SubscriptionID]subscription)}
		r.channels[topic] = ch
	}
	connected := r.connected
	r.mu.Unlock()

	if !ok && connected {
		if err := r.write(frame{Topic: topic, Event: frameJoin}); err != nil {
			r.logger.Warn("join failed", zap.String("topic", topic), zap.Error(err))
		}
	}
	return ch
}

// RemoveChannel leaves the channel's topic and forgets it.
func (r *Realtime) RemoveChannel(ch *Channel) {
	if ch == nil {
		return
	}

	r.mu.Lock()
	_, ok := r.channels[ch.topic]
	delete(r.channels, ch.topic)
	connected := r.connected
	r.mu.Unlock()

	if ok && connected {
		if err := r.write(frame{Topic: ch.topic, Event: frameLeave}); err != nil {
			r.logger.Debug("leave failed", zap.String("topic", ch.topic), zap.Error(err))
		}
	}
}

func (r *Realtime) write(f frame) error {
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	if conn == nil {
		return errors.New("realtime: not connected")
	}

	data, err := sonic.Marshal(f)
	if err != nil {
		return err
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop decodes inbound frames and dispatches change events to channel
// subscribers. A read error marks the transport dead; recovery is the
// connection lifecycle manager's job, not ours.
func (r *Realtime) readLoop(conn *websocket.Conn, done chan struct{}) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
				// Deliberate disconnect.
			default:
				r.logger.Warn("realtime read failed", zap.Error(err))
				r.markDead(conn)
			}
			return
		}

		var f frame
		if err := sonic.Unmarshal(data, &f); err != nil {
			r.logger.Debug("unparseable realtime frame", zap.Error(err))
			continue
		}

		switch f.Event {
		case frameHeartbeat, "phx_reply", "ok":
			continue
		}

		evt := Event{Topic: f.Topic, Type: EventType(f.Event), Table: f.Table, Payload: f.Payload}

		r.mu.Lock()
		ch := r.channels[f.Topic]
		r.mu.Unlock()
		if ch != nil {
			ch.dispatch(evt)
		}
	}
}

func (r *Realtime) heartbeatLoop(done chan struct{}) {
	ticker := time.NewTicker(r.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := r.write(frame{Event: frameHeartbeat}); err != nil {
				return
			}
		}
	}
}

// markDead flips connected off after an unexpected read failure, but only if
// the failing socket is still current.
func (r *Realtime) markDead(conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == conn {
		r.connected = false
		r.conn = nil
		if r.done != nil {
			close(r.done)
			r.done = nil
		}
	}
	conn.Close()
}
