package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/notedesk/internal/events"
	"github.com/desertthunder/notedesk/internal/listsync"
	"github.com/desertthunder/notedesk/internal/shared"
	"github.com/gorilla/websocket"
)

const (
	clientBuffer = 64
	writeWait    = 10 * time.Second
	pingPeriod   = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4 * 1024,
	CheckOrigin:     sameOrigin,
}

// sameOrigin accepts requests without an Origin header and those whose origin host is the request host.
func sameOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, strings.TrimSpace(r.Host))
}

// Hub streams bus events to websocket clients.
type Hub struct {
	bus     *events.Bus
	logger  *log.Logger
	clients atomic.Int64
}

// NewHub creates a [Hub] forwarding events from bus.
func NewHub(bus *events.Bus, logger *log.Logger) *Hub {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Hub{bus: bus, logger: shared.WithLogger(logger, "component", "hub")}
}

// Routes returns the HTTP routes this handler serves.
func (h *Hub) Routes() []string {
	return []string{"GET /api/events"}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	return int(h.clients.Load())
}

// ServeHTTP upgrades the request and forwards events until either side closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	frames := make(chan listsync.Event, clientBuffer)
	id := h.bus.On(events.Wildcard, func(ev listsync.Event) {
		select {
		case frames <- ev:
		default:
			h.logger.Warn("dropping event for slow client", "event", ev.Name, "remote", r.RemoteAddr)
		}
	})
	defer h.bus.Off(events.Wildcard, id)

	h.clients.Add(1)
	defer h.clients.Add(-1)
	h.logger.Debug("client connected", "remote", r.RemoteAddr)

	// Reads only surface the close frame; clients never send data.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			h.logger.Debug("client disconnected", "remote", r.RemoteAddr)
			return
		case <-r.Context().Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case ev := <-frames:
			data, err := json.Marshal(ev)
			if err != nil {
				h.logger.Warn("failed to encode event", "event", ev.Name, "error", err)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debug("write failed", "remote", r.RemoteAddr, "error", err)
				return
			}
		}
	}
}
