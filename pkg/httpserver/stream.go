package httpserver

import (
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/polyhedge/polyhedge/internal/analytics"
	"github.com/polyhedge/polyhedge/internal/session"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamFrame is one websocket message pushed to a stream subscriber.
type StreamFrame struct {
	Type    string                     `json:"type"`
	Payload analytics.PortfolioMetrics `json:"payload"`
}

// HandleStream handles GET /api/v1/portfolios/{id}/stream. The socket
// receives a metrics frame on connect and after every accepted trigger.
// Inbound messages are ignored; the read side only services pongs and close.
func (h *PortfolioHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Debug("stream-upgrade-failed", zap.Error(err))
		return
	}

	h.logger.Debug("stream-connected",
		zap.String("session-id", sess.ID),
		zap.String("remote", conn.RemoteAddr().String()))

	updates := sess.Subscribe()

	go h.writePump(conn, sess, updates)
	h.readPump(conn, sess, updates)
}

// writePump is the sole writer on the connection. It sends the initial
// frame, relays metrics updates, and keeps the connection alive with pings.
func (h *PortfolioHandler) writePump(conn *websocket.Conn, sess *session.Session, updates chan analytics.PortfolioMetrics) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	err := writeFrame(conn, sess.Metrics())
	if err != nil {
		return
	}

	for {
		select {
		case m, ok := <-updates:
			if !ok {
				// Session closed or deleted.
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			err := writeFrame(conn, m)
			if err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			if err != nil {
				return
			}
		}
	}
}

// readPump drains the connection so close frames and pongs are processed.
func (h *PortfolioHandler) readPump(conn *websocket.Conn, sess *session.Session, updates chan analytics.PortfolioMetrics) {
	defer func() {
		sess.Unsubscribe(updates)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Debug("stream-read-error", zap.Error(err))
			}
			return
		}
	}
}

func writeFrame(conn *websocket.Conn, m analytics.PortfolioMetrics) error {
	buf, err := json.Marshal(StreamFrame{Type: "metrics", Payload: m})
	if err != nil {
		return err
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, buf)
}
