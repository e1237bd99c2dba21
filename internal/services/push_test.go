package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/notedesk/internal/listsync"
	tu "github.com/desertthunder/notedesk/internal/testing"
	"github.com/gorilla/websocket"
)

// eventServer accepts websocket clients and hands each connection to the test.
type eventServer struct {
	*httptest.Server
	conns chan *websocket.Conn
	auth  atomic.Value
}

func newEventServer(t *testing.T) *eventServer {
	t.Helper()
	s := &eventServer{conns: make(chan *websocket.Conn, 4)}
	upgrader := websocket.Upgrader{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.auth.Store(r.Header.Get("Authorization"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.conns <- conn
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *eventServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/api/events"
}

func (s *eventServer) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case c := <-s.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for client connection")
		return nil
	}
}

func TestPushClient(t *testing.T) {
	t.Run("Delivers Events", func(t *testing.T) {
		srv := newEventServer(t)
		client := NewPushClient(srv.wsURL(), "tok", 10*time.Millisecond, nil)

		var mu sync.Mutex
		var got []string
		client.On("note_created", func(ev listsync.Event) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, string(ev.Data))
		})

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- client.Run(ctx) }()

		conn := srv.accept(t)
		tu.WaitFor(t, "connected", client.Connected)
		if auth, _ := srv.auth.Load().(string); auth != "Bearer tok" {
			t.Errorf("expected bearer token on handshake, got %q", auth)
		}

		conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"tag_created"}`))
		conn.WriteJSON(map[string]any{"event": "note_created", "data": map[string]string{"id": "n1"}})

		tu.WaitFor(t, "event", func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(got) == 1
		})
		if got[0] != `{"id":"n1"}` {
			t.Errorf("unexpected payload: %s", got[0])
		}

		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run returned %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Run did not stop after cancel")
		}
		conn.Close()
	})

	t.Run("Resyncs After Reconnect", func(t *testing.T) {
		srv := newEventServer(t)
		client := NewPushClient(srv.wsURL(), "", 10*time.Millisecond, nil)

		var calls atomic.Int32
		id := client.On("folder_updated", func(listsync.Event) { calls.Add(1) })

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go client.Run(ctx)

		first := srv.accept(t)
		tu.WaitFor(t, "connected", client.Connected)
		first.Close()

		second := srv.accept(t)
		defer second.Close()
		tu.WaitFor(t, "resync", func() bool { return calls.Load() == 1 })

		client.Off("folder_updated", id)
		second.WriteJSON(map[string]string{"event": "folder_updated"})
		time.Sleep(30 * time.Millisecond)
		if calls.Load() != 1 {
			t.Errorf("expected no delivery after Off, got %d", calls.Load())
		}
	})

	t.Run("Drives Controller", func(t *testing.T) {
		srv := newEventServer(t)
		client := NewPushClient(srv.wsURL(), "", 10*time.Millisecond, nil)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go client.Run(ctx)

		fetcher := &tu.StaticFetcher[string]{Items: []string{"a"}}
		c, err := listsync.NewController(listsync.Config[string]{
			Resource: "notes",
			Events:   []string{"note_updated"},
			Key:      func(s string) string { return s },
			Fetcher:  fetcher,
			Realtime: listsync.NewMultiplexer(client, listsync.WithCoalesceWindow(10*time.Millisecond)),
		})
		if err != nil {
			t.Fatalf("NewController: %v", err)
		}
		defer c.Unmount()
		c.Mount(ctx)
		c.Wait(ctx)

		conn := srv.accept(t)
		defer conn.Close()
		tu.WaitFor(t, "connected", client.Connected)
		conn.WriteJSON(map[string]string{"event": "note_updated"})
		conn.WriteJSON(map[string]string{"event": "note_updated"})

		tu.WaitFor(t, "refetch", func() bool { return len(fetcher.Calls()) == 2 })
	})
}
