package ws

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/circlehq/circle-go/internal/connection"
	"github.com/circlehq/circle-go/internal/infrastructure/logging"
	"github.com/circlehq/circle-go/internal/infrastructure/monitoring"
	"github.com/circlehq/circle-go/internal/platform"
	"github.com/circlehq/circle-go/internal/shared/id"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in dev
	},
}

// Message is the wire shape of client-to-gateway frames.
type Message struct {
	Type   string `json:"type"`
	Domain string `json:"domain,omitempty"`
}

// Handler fans platform change events out to browser clients. Each client
// subscribes to cache domains and receives the raw change events for them,
// so the frontend can refresh views the moment data moves.
type Handler struct {
	conns   *connection.Manager
	metrics *monitoring.Metrics
	logger  *logging.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(conns *connection.Manager, metrics *monitoring.Metrics, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		conns:   conns,
		metrics: metrics,
		logger:  logger,
	}
}

// session is one connected browser client.
type session struct {
	conn   *websocket.Conn
	connID id.ConnectionID

	mu      sync.Mutex
	domains map[string]func() // domain -> unsubscribe
	closed  bool
}

func (s *session) send(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return websocket.ErrCloseSent
	}
	return s.conn.WriteJSON(v)
}

// HandleConnection handles WebSocket upgrade and messages
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sess := &session{
		conn:    conn,
		connID:  id.NewConnection(),
		domains: make(map[string]func()),
	}

	h.metrics.IncWSConnections()
	defer func() {
		h.teardown(sess)
		h.metrics.DecWSConnections()
	}()

	// When the client handle is recreated every subscription on the old
	// transport dies with it; move this session's domains over and tell
	// the browser so it can refetch anything it was watching.
	cancelChange := h.conns.OnClientChange(func(client *platform.Client) {
		h.resubscribe(sess, client)
		if err := sess.send(gin.H{"type": "connection", "state": "reconnected"}); err == nil {
			h.metrics.RecordWSMessage("out", "connection")
		}
	})
	defer cancelChange()

	// Send welcome message
	if err := sess.send(gin.H{
		"type":          "system",
		"message":       "Connected to Circle Gateway",
		"connection_id": string(sess.connID),
	}); err != nil {
		return
	}
	h.metrics.RecordWSMessage("out", "system")

	// Listen for messages
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("websocket read failed", zap.Error(err))
			}
			return
		}
		h.metrics.RecordWSMessage("in", msg.Type)

		switch msg.Type {
		case "subscribe":
			h.handleSubscribe(sess, msg.Domain)
		case "unsubscribe":
			h.handleUnsubscribe(sess, msg.Domain)
		case "ping":
			if err := sess.send(gin.H{"type": "pong"}); err != nil {
				return
			}
			h.metrics.RecordWSMessage("out", "pong")
		default:
			sess.send(gin.H{"type": "error", "message": "unknown message type"})
		}
	}
}

func (h *Handler) handleSubscribe(sess *session, domain string) {
	if domain == "" {
		sess.send(gin.H{"type": "error", "message": "domain is required"})
		return
	}

	sess.mu.Lock()
	_, exists := sess.domains[domain]
	if exists {
		sess.mu.Unlock()
		return
	}
	sess.domains[domain] = nil
	sess.mu.Unlock()

	unsub := h.subscribe(sess, domain, h.conns.GetClient())

	sess.mu.Lock()
	sess.domains[domain] = unsub
	sess.mu.Unlock()

	sess.send(gin.H{"type": "subscribed", "domain": domain})
	h.metrics.RecordWSMessage("out", "subscribed")
}

func (h *Handler) handleUnsubscribe(sess *session, domain string) {
	sess.mu.Lock()
	unsub := sess.domains[domain]
	delete(sess.domains, domain)
	sess.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// subscribe binds a forwarding callback to the domain's realtime channel.
func (h *Handler) subscribe(sess *session, domain string, client *platform.Client) func() {
	ch := client.Realtime().Channel("realtime:" + domain)
	return ch.Subscribe(platform.Filter{}, func(e platform.Event) {
		err := sess.send(gin.H{
			"type":    "change",
			"domain":  domain,
			"event":   string(e.Type),
			"table":   e.Table,
			"payload": e.Payload,
		})
		if err == nil {
			h.metrics.RecordWSMessage("out", "change")
		}
	})
}

// resubscribe moves all of a session's domains onto a fresh client handle.
func (h *Handler) resubscribe(sess *session, client *platform.Client) {
	sess.mu.Lock()
	domains := make([]string, 0, len(sess.domains))
	for domain, unsub := range sess.domains {
		if unsub != nil {
			unsub()
		}
		domains = append(domains, domain)
	}
	sess.mu.Unlock()

	for _, domain := range domains {
		unsub := h.subscribe(sess, domain, client)
		sess.mu.Lock()
		sess.domains[domain] = unsub
		sess.mu.Unlock()
	}
}

func (h *Handler) teardown(sess *session) {
	sess.mu.Lock()
	sess.closed = true
	unsubs := make([]func(), 0, len(sess.domains))
	for _, unsub := range sess.domains {
		if unsub != nil {
			unsubs = append(unsubs, unsub)
		}
	}
	sess.domains = make(map[string]func())
	sess.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	sess.conn.Close()
}
