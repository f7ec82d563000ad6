package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ──────────────────────────────────────────────────────────────────────────────
// Tunables
// ──────────────────────────────────────────────────────────────────────────────

const (
	writeDeadline  = 10 * time.Second
	pingInterval   = 30 * time.Second
	pongWait       = 35 * time.Second // must be > pingInterval
	maxMessageSize = 512              // bytes; viewers only send pongs
	sendBufferSize = 64               // events queued per viewer
	fanoutBuffer   = 128
)

// replayed lists the event types a viewer receives on connect, in order, so a
// board opened mid-round shows the open round and the last draw at once.
var replayed = []MsgType{MsgTypeRoundOpened, MsgTypeDrawResult}

// event is one encoded message on its way to the viewers.
type event struct {
	kind    MsgType
	payload []byte
}

// viewer is one connected result board.
type viewer struct {
	hub  *Hub
	conn *websocket.Conn
	out  chan []byte
}

// ──────────────────────────────────────────────────────────────────────────────
// Hub
// ──────────────────────────────────────────────────────────────────────────────

// Hub pushes round events to every connected viewer and remembers the latest
// event of each replayed type. Run must be running before ServeWs is used.
type Hub struct {
	mu      sync.RWMutex
	viewers map[*viewer]struct{}
	latest  map[MsgType][]byte

	events chan event
	join   chan *viewer
	leave  chan *viewer
	done   chan struct{}

	upgrader websocket.Upgrader
	log      *slog.Logger
}

// NewHub creates a Hub. An empty allowedOrigins accepts every origin.
func NewHub(allowedOrigins []string, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		viewers: make(map[*viewer]struct{}),
		latest:  make(map[MsgType][]byte),
		events:  make(chan event, fanoutBuffer),
		join:    make(chan *viewer),
		leave:   make(chan *viewer),
		done:    make(chan struct{}),
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		return slices.Contains(allowed, r.Header.Get("Origin"))
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Event loop
// ──────────────────────────────────────────────────────────────────────────────

// Run owns the viewer set until Stop is called. Call it once as a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for v := range h.viewers {
				delete(h.viewers, v)
				close(v.out)
			}
			h.mu.Unlock()
			return

		case v := <-h.join:
			h.mu.Lock()
			h.viewers[v] = struct{}{}
			for _, kind := range replayed {
				if msg, ok := h.latest[kind]; ok {
					v.out <- msg // fresh buffer, cannot block
				}
			}
			h.mu.Unlock()

		case v := <-h.leave:
			h.mu.Lock()
			if _, ok := h.viewers[v]; ok {
				delete(h.viewers, v)
				close(v.out)
			}
			h.mu.Unlock()

		case ev := <-h.events:
			h.mu.Lock()
			if slices.Contains(replayed, ev.kind) {
				h.latest[ev.kind] = ev.payload
			}
			for v := range h.viewers {
				select {
				case v.out <- ev.payload:
				default:
					h.log.Debug("ws viewer lagging, event dropped", "type", ev.kind)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Stop ends Run and disconnects every viewer.
func (h *Hub) Stop() {
	close(h.done)
}

// ConnectedCount returns the number of connected viewers.
func (h *Hub) ConnectedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers)
}

// ──────────────────────────────────────────────────────────────────────────────
// Connections
// ──────────────────────────────────────────────────────────────────────────────

// ServeWs upgrades the request and attaches a viewer. Results are public, so
// connections are anonymous.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	v := &viewer{hub: h, conn: conn, out: make(chan []byte, sendBufferSize)}
	select {
	case h.join <- v:
	case <-h.done:
		conn.Close()
		return
	}

	go v.writeLoop()
	go v.readLoop()
}

// writeLoop sends queued events and keeps the connection alive with pings.
func (v *viewer) writeLoop() {
	ping := time.NewTicker(pingInterval)
	defer func() {
		ping.Stop()
		v.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-v.out:
			_ = v.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				_ = v.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := v.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ping.C:
			_ = v.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := v.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop services pongs and detects disconnects.
func (v *viewer) readLoop() {
	defer func() {
		select {
		case v.hub.leave <- v:
		case <-v.hub.done:
		}
		v.conn.Close()
	}()

	v.conn.SetReadLimit(maxMessageSize)
	_ = v.conn.SetReadDeadline(time.Now().Add(pongWait))
	v.conn.SetPongHandler(func(string) error {
		return v.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				v.hub.log.Debug("ws unexpected close", "err", err)
			}
			return
		}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Publishing: implements scheduler.Notifier
// ──────────────────────────────────────────────────────────────────────────────

// BroadcastRoundOpened publishes a round_opened event.
func (h *Hub) BroadcastRoundOpened(msg RoundOpenedMessage) { h.publish(MsgTypeRoundOpened, msg) }

// BroadcastDrawResult publishes a draw_result event.
func (h *Hub) BroadcastDrawResult(msg DrawResultMessage) { h.publish(MsgTypeDrawResult, msg) }

// BroadcastRoundSettled publishes a round_settled event.
func (h *Hub) BroadcastRoundSettled(msg RoundSettledMessage) { h.publish(MsgTypeRoundSettled, msg) }

func (h *Hub) publish(kind MsgType, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.log.Error("ws marshal failed", "type", kind, "err", err)
		return
	}
	select {
	case h.events <- event{kind: kind, payload: payload}:
	case <-h.done:
	default:
		h.log.Warn("ws fan-out full, event dropped", "type", kind)
	}
}
