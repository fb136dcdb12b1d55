package handlers

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"lingopulse/realtime-gateway/auth"
	"lingopulse/realtime-gateway/models"
	"lingopulse/realtime-gateway/services"
	"lingopulse/realtime-gateway/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	sendBufferSize = 16
)

type connState int

const (
	stateUnauthenticated connState = iota
	stateAuthenticating
	stateAuthenticated
	stateClosed
)

// InboundFrame is what clients send over the socket.
type InboundFrame struct {
	Type  string `json:"type"`
	Topic string `json:"topic,omitempty"`
}

// OutboundFrame is what the gateway sends back.
type OutboundFrame struct {
	Type              string                 `json:"type"`
	Topic             string                 `json:"topic,omitempty"`
	Error             string                 `json:"error,omitempty"`
	RetryAfterSeconds int64                  `json:"retry_after_seconds,omitempty"`
	Event             *models.StatusEvent    `json:"event,omitempty"`
	Payload           map[string]interface{} `json:"payload,omitempty"`
}

// Gateway owns the WebSocket lifecycle: it authenticates the handshake,
// tracks presence for identified connections, rate-limits inbound
// frames, and routes status subscriptions through the broadcaster.
//
// A handshake with a missing or invalid token is NOT rejected. The
// connection proceeds anonymously: it can subscribe to status topics
// but carries no identity, so presence and rate limiting are skipped
// for it. The downgrade is logged at warn level so a misconfigured
// client is visible in logs.
type Gateway struct {
	upgrader      websocket.Upgrader
	authenticator *auth.Authenticator
	presence      *services.PresenceTracker
	limiter       *services.RateLimiter
	broadcaster   *services.StatusBroadcaster
	tokenHeader   string
	storeTimeout  time.Duration
	logger        *utils.Logger
}

func NewGateway(
	authenticator *auth.Authenticator,
	presence *services.PresenceTracker,
	limiter *services.RateLimiter,
	broadcaster *services.StatusBroadcaster,
	tokenHeader string,
	storeTimeout time.Duration,
	logger *utils.Logger,
) *Gateway {
	return &Gateway{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		authenticator: authenticator,
		presence:      presence,
		limiter:       limiter,
		broadcaster:   broadcaster,
		tokenHeader:   tokenHeader,
		storeTimeout:  storeTimeout,
		logger:        logger,
	}
}

// connection is the per-socket state. The read loop is the only
// goroutine that mutates it after the handshake.
type connection struct {
	id       string
	ws       *websocket.Conn
	identity *models.Identity
	state    connState
	send     chan OutboundFrame
	done     chan struct{}
	once     sync.Once
	subs     map[string]chan models.StatusEvent
}

// HandleWS upgrades the HTTP request and runs the connection until the
// peer goes away.
func (g *Gateway) HandleWS(c *gin.Context) {
	conn := &connection{
		id:    uuid.NewString(),
		state: stateUnauthenticated,
		send:  make(chan OutboundFrame, sendBufferSize),
		done:  make(chan struct{}),
		subs:  make(map[string]chan models.StatusEvent),
	}
	log := g.logger.With("conn_id", conn.id)

	token := g.extractToken(c.Request)
	if token == "" {
		log.Warn("no token on handshake, connection will be anonymous")
	} else {
		conn.state = stateAuthenticating
		identity, err := g.authenticator.Authenticate(token)
		if err != nil {
			log.Warn("handshake authentication failed, downgrading to anonymous", "error", err)
		} else {
			conn.identity = &identity
			log = log.With("user_id", identity.UserID)
		}
	}

	ws, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("websocket upgrade failed", "error", err)
		return
	}
	conn.ws = ws
	conn.state = stateAuthenticated

	if conn.identity != nil {
		ctx, cancel := context.WithTimeout(context.Background(), g.storeTimeout)
		if err := g.presence.MarkOnline(ctx, conn.identity.UserID); err != nil {
			log.Warn("failed to mark user online", "error", err)
		}
		cancel()
		g.broadcaster.Publish(models.StatusEvent{
			UserID:    conn.identity.UserID,
			Status:    models.StatusOnline,
			Timestamp: time.Now(),
		})
	}

	go g.writePump(conn, log)
	g.readLoop(conn, log)
}

// extractToken looks in the gateway's custom header first, then the
// standard Authorization header, then the query string (browsers
// cannot set headers on WebSocket handshakes).
func (g *Gateway) extractToken(r *http.Request) string {
	if token := r.Header.Get(g.tokenHeader); token != "" {
		return token
	}
	if header := r.Header.Get("Authorization"); header != "" {
		return strings.TrimSpace(header)
	}
	return r.URL.Query().Get("token")
}

func (g *Gateway) readLoop(conn *connection, log *utils.Logger) {
	defer g.teardown(conn, log)

	conn.ws.SetReadLimit(4096)
	_ = conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("connection closed unexpectedly", "error", err)
			}
			return
		}

		var frame InboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			conn.trySend(OutboundFrame{Type: "error", Error: "malformed frame"})
			continue
		}

		// Anonymous connections carry no identity to count against.
		if conn.identity != nil && !g.allowFrame(conn, log) {
			continue
		}

		g.dispatch(conn, frame, log)
	}
}

// allowFrame charges one frame against the connection's rate window.
// Denials answer with a structured frame carrying the wait hint and
// the original frame is never dispatched.
func (g *Gateway) allowFrame(conn *connection, log *utils.Logger) bool {
	ctx, cancel := context.WithTimeout(context.Background(), g.storeTimeout)
	defer cancel()

	decision, err := g.limiter.Allow(ctx, conn.identity.UserID, conn.identity.Role)
	if err != nil {
		log.Warn("rate limit check degraded", "error", err)
	}
	if decision.Allowed {
		return true
	}

	conn.trySend(OutboundFrame{
		Type:              "rate_limited",
		RetryAfterSeconds: int64(math.Ceil(decision.RetryAfter.Seconds())),
	})
	return false
}

func (g *Gateway) dispatch(conn *connection, frame InboundFrame, log *utils.Logger) {
	switch frame.Type {
	case "subscribe":
		g.subscribe(conn, frame.Topic, log)
	case "unsubscribe":
		g.unsubscribe(conn, frame.Topic)
	case "heartbeat":
		g.heartbeat(conn, log)
	default:
		conn.trySend(OutboundFrame{Type: "error", Error: "unknown frame type: " + frame.Type})
	}
}

func (g *Gateway) subscribe(conn *connection, topic string, log *utils.Logger) {
	if topic == "" {
		conn.trySend(OutboundFrame{Type: "error", Error: "subscribe requires a topic"})
		return
	}
	if _, ok := conn.subs[topic]; ok {
		conn.trySend(OutboundFrame{Type: "subscribed", Topic: topic})
		return
	}

	ch := g.broadcaster.Subscribe(topic)
	conn.subs[topic] = ch

	// Forward events until the subscription channel closes or the
	// connection goes away.
	go func() {
		for {
			select {
			case event, ok := <-ch:
				if !ok {
					return
				}
				conn.trySend(OutboundFrame{Type: "status", Topic: topic, Event: &event})
			case <-conn.done:
				return
			}
		}
	}()

	conn.trySend(OutboundFrame{Type: "subscribed", Topic: topic})
	log.Debug("subscribed", "topic", topic)
}

func (g *Gateway) unsubscribe(conn *connection, topic string) {
	ch, ok := conn.subs[topic]
	if !ok {
		return
	}
	delete(conn.subs, topic)
	g.broadcaster.Unsubscribe(topic, ch)
	conn.trySend(OutboundFrame{Type: "unsubscribed", Topic: topic})
}

// heartbeat refreshes the caller's presence TTL. Anonymous heartbeats
// are acknowledged but tracked nowhere.
func (g *Gateway) heartbeat(conn *connection, log *utils.Logger) {
	if conn.identity != nil {
		ctx, cancel := context.WithTimeout(context.Background(), g.storeTimeout)
		defer cancel()
		if err := g.presence.MarkOnline(ctx, conn.identity.UserID); err != nil {
			log.Warn("failed to refresh presence", "error", err)
		}
	}
	conn.trySend(OutboundFrame{Type: "heartbeat_ack"})
}

// teardown runs exactly once when the read loop exits. Presence is
// cleared and OFFLINE published on the same goroutine that published
// ONLINE, so a session's events are always observed in order.
func (g *Gateway) teardown(conn *connection, log *utils.Logger) {
	conn.once.Do(func() {
		conn.state = stateClosed
		close(conn.done)

		for topic, ch := range conn.subs {
			g.broadcaster.Unsubscribe(topic, ch)
		}

		if conn.identity != nil {
			ctx, cancel := context.WithTimeout(context.Background(), g.storeTimeout)
			defer cancel()
			if err := g.presence.MarkOffline(ctx, conn.identity.UserID); err != nil {
				log.Warn("failed to mark user offline", "error", err)
			}
			g.broadcaster.Publish(models.StatusEvent{
				UserID:    conn.identity.UserID,
				Status:    models.StatusOffline,
				Timestamp: time.Now(),
			})
		}

		_ = conn.ws.Close()
		log.Info("connection closed")
	})
}

func (g *Gateway) writePump(conn *connection, log *utils.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame := <-conn.send:
			_ = conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.ws.WriteJSON(frame); err != nil {
				log.Debug("write failed", "error", err)
				_ = conn.ws.Close()
				return
			}
		case <-ticker.C:
			_ = conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.ws.Close()
				return
			}
		case <-conn.done:
			return
		}
	}
}

// trySend queues a frame without blocking. A full buffer drops the
// frame; the socket-level ping keeps genuinely dead peers detectable.
func (c *connection) trySend(frame OutboundFrame) {
	select {
	case c.send <- frame:
	case <-c.done:
	default:
	}
}
