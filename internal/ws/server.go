// Package ws forwards bus events to connected UI clients at GET /v2/ws.
// Each client gets a bounded send buffer with non-blocking enqueue, a write
// pump that pings on silence, and a read pump that keeps the connection
// alive.
package ws

import (
	"net/http"
	"sync"
	"time"

	jsoncodec "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/hanssonlabs/puckline/internal/bus"
	"github.com/hanssonlabs/puckline/internal/model"
	"github.com/hanssonlabs/puckline/internal/telemetry"
)

const (
	clientSendBuf = 256
	writeDeadline = 5 * time.Second
	pongWait      = 70 * time.Second
	pingInterval  = 60 * time.Second // ping after 60s of silence
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// outFrame is the client-facing wire shape: {game_uuid, type, ...}.
type outFrame struct {
	GameUUID string        `json:"game_uuid"`
	Type     string        `json:"type"`           // event | report | stats
	Kind     string        `json:"kind,omitempty"` // set only when type=stats: standings|playoffs|player_stats
	Event    *model.Event  `json:"event,omitempty"`
	Report   *model.Report `json:"report,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

// Server fans out bus events to every connected WebSocket client.
type Server struct {
	mu      sync.Mutex
	clients map[*client]struct{}
}

func NewServer(b *bus.Bus) *Server {
	s := &Server{
		clients: make(map[*client]struct{}),
	}
	b.Subscribe("ws-broadcast", s.forward)
	return s
}

// forward runs on the bus subscription's own goroutine. It renders the
// message to the client-facing frame shape and enqueues it to every
// connected client (non-blocking; a full client buffer is a drop, not a
// stall; the broadcaster must never become the slow consumer that backs up
// the bus).
func (s *Server) forward(msg bus.Message) {
	frame, ok := toFrame(msg)
	if !ok {
		return
	}
	data, err := jsoncodec.Marshal(frame)
	if err != nil {
		telemetry.Warnf("ws: marshal error: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			telemetry.Warnf("ws: dropping frame for slow client")
		}
	}
}

func toFrame(msg bus.Message) (outFrame, bool) {
	switch msg.Type {
	case bus.MsgReportUpdated:
		return outFrame{GameUUID: msg.GameUUID, Type: "report", Report: msg.FullReport}, true
	case bus.MsgEventUpdated:
		return outFrame{GameUUID: msg.GameUUID, Type: "event", Event: msg.Event}, true
	default:
		return outFrame{}, false
	}
}

// BroadcastStats publishes a "stats" frame (standings/playoffs/player-stats
// refresh) outside the bus message vocabulary, since those collections carry
// no game_uuid of their own; the aggregate refresher calls this directly.
func (s *Server) BroadcastStats(gameUUID, kind string) {
	data, err := jsoncodec.Marshal(outFrame{GameUUID: gameUUID, Type: "stats", Kind: kind})
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			telemetry.Warnf("ws: dropping stats frame for slow client")
		}
	}
}

// HandleWS upgrades the HTTP request and starts the client's read/write pumps.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		telemetry.Warnf("ws: upgrade failed: %v", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, clientSendBuf),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	telemetry.Plainf("ws: client connected")

	go s.writePump(c)
	go s.readPump(c)
}

// writePump drains the client's send channel and pings on silence. It owns
// the client lifecycle: on exit it removes the client (so forward never
// sends to a stale channel) and closes the connection.
func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.removeClient(c)
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				telemetry.Warnf("ws: write error: %v", err)
				return
			}
			ticker.Reset(pingInterval)
		case <-c.done:
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// subscribeHint is the optional client->server message: {"game_uuid": "..."}.
// Currently accepted and logged; no filtering is implemented on it.
type subscribeHint struct {
	GameUUID string `json:"game_uuid"`
}

// readPump keeps the connection alive and logs subscribe hints. On exit it
// signals writePump via c.done (never closes c.send, since forward may still
// be writing to it concurrently).
func (s *Server) readPump(c *client) {
	defer close(c.done)

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var hint subscribeHint
		if err := jsoncodec.Unmarshal(data, &hint); err == nil && hint.GameUUID != "" {
			telemetry.Debugf("ws: subscribe hint for game %s (not filtered)", hint.GameUUID)
		}
	}
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	telemetry.Plainf("ws: client disconnected")
}
