package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/notedesk/internal/events"
	"github.com/desertthunder/notedesk/internal/listsync"
	"github.com/desertthunder/notedesk/internal/shared"
	"github.com/gorilla/websocket"
)

const pushReadLimit = 1 << 20

// PushClient receives admin API events over a websocket and republishes them locally.
//
// It implements [listsync.PushSource]; bindings survive reconnects. After a reconnect every bound
// event is emitted once, since changes may have been missed while disconnected.
type PushClient struct {
	url       string
	token     string
	reconnect time.Duration
	dialer    *websocket.Dialer
	bus       *events.Bus
	logger    *log.Logger
	connected atomic.Bool
}

// NewPushClient creates a client for the event stream at url. Call [PushClient.Run] to connect.
func NewPushClient(url, token string, reconnect time.Duration, logger *log.Logger) *PushClient {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	if reconnect <= 0 {
		reconnect = 3 * time.Second
	}
	return &PushClient{
		url:       url,
		token:     token,
		reconnect: reconnect,
		dialer:    &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		bus:       events.NewBus(logger),
		logger:    logger,
	}
}

func (p *PushClient) On(event string, h listsync.Handler) listsync.BindingID {
	return p.bus.On(event, h)
}

func (p *PushClient) Off(event string, id listsync.BindingID) {
	p.bus.Off(event, id)
}

// Connected reports whether the stream is currently open.
func (p *PushClient) Connected() bool {
	return p.connected.Load()
}

// Run connects and delivers events until ctx is done, reconnecting after failures.
func (p *PushClient) Run(ctx context.Context) error {
	attempts := 0
	for {
		err := p.stream(ctx, attempts > 0)
		if ctx.Err() != nil {
			return nil
		}
		attempts++
		p.logger.Warn("event stream disconnected", "url", p.url, "error", err, "retry_in", p.reconnect)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(p.reconnect):
		}
	}
}

func (p *PushClient) stream(ctx context.Context, resync bool) error {
	header := http.Header{}
	if p.token != "" {
		header.Set("Authorization", "Bearer "+p.token)
	}

	conn, resp, err := p.dialer.DialContext(ctx, p.url, header)
	if err != nil {
		if resp != nil && resp.StatusCode >= 400 {
			return &shared.StatusError{Status: resp.StatusCode}
		}
		return fmt.Errorf("%w: dial %s: %w", shared.ErrNetwork, p.url, err)
	}
	defer conn.Close()
	conn.SetReadLimit(pushReadLimit)

	p.connected.Store(true)
	defer p.connected.Store(false)
	p.logger.Info("event stream connected", "url", p.url)

	if resync {
		for _, name := range p.bus.Names() {
			p.bus.Publish(listsync.Event{Name: name})
		}
	}

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("%w: read: %w", shared.ErrNetwork, err)
		}

		var ev listsync.Event
		if err := json.Unmarshal(data, &ev); err != nil || ev.Name == "" {
			p.logger.Debug("ignoring malformed frame", "error", err, "size", len(data))
			continue
		}
		p.bus.Publish(ev)
	}
}
