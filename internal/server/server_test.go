package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/notedesk/internal/events"
	"github.com/desertthunder/notedesk/internal/listsync"
	"github.com/desertthunder/notedesk/internal/models"
	"github.com/desertthunder/notedesk/internal/services"
	"github.com/desertthunder/notedesk/internal/shared"
	tu "github.com/desertthunder/notedesk/internal/testing"
	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T, secret string) (*httptest.Server, *Server) {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	srv := New(db, nil, secret, nil)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts, srv
}

func do(t *testing.T, ts *httptest.Server, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var r io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, r)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func create(t *testing.T, ts *httptest.Server, resource string, payload map[string]any) string {
	t.Helper()
	status, body := do(t, ts, http.MethodPost, "/api/"+resource, "", payload)
	if status != http.StatusCreated {
		t.Fatalf("create %s: expected 201, got %d: %v", resource, status, body)
	}
	return body["id"].(string)
}

func itemTitles(body map[string]any) []string {
	out := []string{}
	items, _ := body["items"].([]any)
	for _, it := range items {
		out = append(out, it.(map[string]any)["title"].(string))
	}
	return out
}

func TestBasicRouter(t *testing.T) {
	t.Run("Applies middleware in order", func(t *testing.T) {
		var order []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		r := NewBasicRouter()
		r.Use(mark("first"), mark("second"))
		r.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			order = append(order, "handler")
		}))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

		if diff := cmp.Diff([]string{"first", "second", "handler"}, order); diff != "" {
			t.Errorf("order mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Rejects other methods", func(t *testing.T) {
		r := NewBasicRouter()
		r.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("Recover turns panics into 500s", func(t *testing.T) {
		r := NewBasicRouter()
		r.Use(Recover(shared.DiscardLogger()))
		r.Handle(http.MethodGet, "/boom", http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})
}

func TestAPIHandler(t *testing.T) {
	t.Run("Health", func(t *testing.T) {
		ts, _ := newTestServer(t, "")
		status, body := do(t, ts, http.MethodGet, "/health", "", nil)
		if status != http.StatusOK || body["status"] != "ok" {
			t.Errorf("unexpected health response %d %v", status, body)
		}
	})

	t.Run("List paginates with envelope", func(t *testing.T) {
		ts, _ := newTestServer(t, "")
		for _, title := range []string{"a", "b", "c", "d", "e"} {
			create(t, ts, "notes", map[string]any{"title": title, "user_id": "u1"})
		}

		status, body := do(t, ts, http.MethodGet, "/api/notes?page=2&page_size=2", "", nil)
		if status != http.StatusOK {
			t.Fatalf("expected 200, got %d: %v", status, body)
		}
		if diff := cmp.Diff([]string{"c", "d"}, itemTitles(body)); diff != "" {
			t.Errorf("items mismatch (-want +got):\n%s", diff)
		}

		want := map[string]any{"page": 2.0, "page_size": 2.0, "total_items": 5.0, "total_pages": 3.0}
		if diff := cmp.Diff(want, body["pagination"]); diff != "" {
			t.Errorf("pagination mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("List filters", func(t *testing.T) {
		ts, _ := newTestServer(t, "")
		create(t, ts, "notes", map[string]any{"title": "Work plan", "category": "work"})
		create(t, ts, "notes", map[string]any{"title": "Recipes", "category": "home"})

		_, body := do(t, ts, http.MethodGet, "/api/notes?category=work", "", nil)
		if diff := cmp.Diff([]string{"Work plan"}, itemTitles(body)); diff != "" {
			t.Errorf("items mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("List rejects bad input", func(t *testing.T) {
		ts, _ := newTestServer(t, "")
		for _, path := range []string{"/api/notes?page=0", "/api/notes?page_size=x", "/api/notes?sort=bogus"} {
			if status, _ := do(t, ts, http.MethodGet, path, "", nil); status != http.StatusBadRequest {
				t.Errorf("GET %s: expected 400, got %d", path, status)
			}
		}
		if status, _ := do(t, ts, http.MethodGet, "/api/widgets", "", nil); status != http.StatusNotFound {
			t.Errorf("expected 404 for unknown resource, got %d", status)
		}
	})

	t.Run("Create validates", func(t *testing.T) {
		ts, _ := newTestServer(t, "")
		status, body := do(t, ts, http.MethodPost, "/api/notes", "", map[string]any{"content": "untitled"})
		if status != http.StatusUnprocessableEntity {
			t.Errorf("expected 422, got %d", status)
		}
		if !strings.Contains(body["error"].(string), "title") {
			t.Errorf("expected error to mention title, got %v", body["error"])
		}
	})

	t.Run("Edit and delete", func(t *testing.T) {
		ts, _ := newTestServer(t, "")
		id := create(t, ts, "tags", map[string]any{"name": "old"})

		status, body := do(t, ts, http.MethodPatch, "/api/tags/"+id, "", map[string]any{"name": "new"})
		if status != http.StatusOK || body["name"] != "new" {
			t.Errorf("unexpected edit response %d %v", status, body)
		}

		if status, _ := do(t, ts, http.MethodDelete, "/api/tags/"+id, "", nil); status != http.StatusNoContent {
			t.Errorf("expected 204, got %d", status)
		}
		if status, _ := do(t, ts, http.MethodDelete, "/api/tags/"+id, "", nil); status != http.StatusNotFound {
			t.Errorf("expected 404 on second delete, got %d", status)
		}
	})

	t.Run("Actions", func(t *testing.T) {
		ts, _ := newTestServer(t, "")
		id := create(t, ts, "notes", map[string]any{"title": "n"})

		_, body := do(t, ts, http.MethodPost, "/api/notes/"+id+"/pin", "", nil)
		if body["is_pinned"] != true {
			t.Errorf("expected pinned note, got %v", body)
		}
		_, body = do(t, ts, http.MethodPost, "/api/notes/"+id+"/archive", "", nil)
		if body["is_archived"] != true {
			t.Errorf("expected archived note, got %v", body)
		}
		_, body = do(t, ts, http.MethodPost, "/api/notes/"+id+"/move", "", map[string]any{"folder_id": "f9"})
		if body["folder_id"] != "f9" {
			t.Errorf("expected moved note, got %v", body)
		}

		if status, _ := do(t, ts, http.MethodPost, "/api/notes/"+id+"/move", "", map[string]any{}); status != http.StatusBadRequest {
			t.Errorf("expected 400 for move without destination, got %d", status)
		}
		if status, _ := do(t, ts, http.MethodPost, "/api/notes/"+id+"/revoke", "", nil); status != http.StatusBadRequest {
			t.Errorf("expected 400 for unsupported action, got %d", status)
		}
	})

	t.Run("Revoke removes the share", func(t *testing.T) {
		ts, _ := newTestServer(t, "")
		id := create(t, ts, "shared-notes", map[string]any{"note_title": "n", "shared_with": "u2", "permission": "read"})

		if status, _ := do(t, ts, http.MethodPost, "/api/shared-notes/"+id+"/revoke", "", nil); status != http.StatusNoContent {
			t.Errorf("expected 204, got %d", status)
		}
		_, body := do(t, ts, http.MethodGet, "/api/shared-notes", "", nil)
		if len(itemTitles(body)) != 0 {
			t.Errorf("expected no shares, got %v", itemTitles(body))
		}
	})

	t.Run("Mutations publish events", func(t *testing.T) {
		ts, srv := newTestServer(t, "")

		var mu sync.Mutex
		var got []string
		srv.Bus().On(events.Wildcard, func(ev listsync.Event) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, ev.Name)
		})

		id := create(t, ts, "notes", map[string]any{"title": "n"})
		do(t, ts, http.MethodPost, "/api/notes/"+id+"/pin", "", nil)
		do(t, ts, http.MethodPatch, "/api/notes/"+id, "", map[string]any{"title": "m"})
		do(t, ts, http.MethodDelete, "/api/notes/"+id, "", nil)
		do(t, ts, http.MethodGet, "/api/notes", "", nil)

		mu.Lock()
		defer mu.Unlock()
		want := []string{"note_created", "note_pinned", "note_updated", "note_deleted"}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("events mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestAuthenticate(t *testing.T) {
	const secret = "s3cret"
	ts, _ := newTestServer(t, secret)

	reader, err := services.SignSession(secret, "reader", []string{"manage_notes.view"}, time.Hour)
	if err != nil {
		t.Fatalf("SignSession failed: %v", err)
	}
	writer, err := services.SignSession(secret, "writer", []string{"manage_notes.*"}, time.Hour)
	if err != nil {
		t.Fatalf("SignSession failed: %v", err)
	}
	forged, _ := services.SignSession("other", "writer", []string{"*"}, time.Hour)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"health is open", http.MethodGet, "/health", "", http.StatusOK},
		{"missing token", http.MethodGet, "/api/notes", "", http.StatusUnauthorized},
		{"forged token", http.MethodGet, "/api/notes", forged, http.StatusUnauthorized},
		{"reader lists", http.MethodGet, "/api/notes", reader, http.StatusOK},
		{"reader cannot create", http.MethodPost, "/api/notes", reader, http.StatusForbidden},
		{"writer creates", http.MethodPost, "/api/notes", writer, http.StatusCreated},
		{"writer scoped to notes", http.MethodPost, "/api/tags", writer, http.StatusForbidden},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, body := do(t, ts, tc.method, tc.path, tc.token, map[string]any{"title": "x", "name": "x"})
			if status != tc.want {
				t.Errorf("expected %d, got %d: %v", tc.want, status, body)
			}
		})
	}
}

func TestHub(t *testing.T) {
	ts, srv := newTestServer(t, "")

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	tu.WaitFor(t, "hub subscription", func() bool { return srv.Bus().Len(events.Wildcard) == 1 })

	id := create(t, ts, "folders", map[string]any{"name": "Inbox"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev listsync.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if ev.Name != "folder_created" {
		t.Errorf("expected folder_created, got %q", ev.Name)
	}

	var data map[string]string
	if err := json.Unmarshal(ev.Data, &data); err != nil {
		t.Fatalf("bad event data: %v", err)
	}
	if data["id"] != id || data["resource"] != "folders" {
		t.Errorf("unexpected event data %v", data)
	}

	conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	tu.WaitFor(t, "hub unsubscribe", func() bool { return srv.Bus().Len(events.Wildcard) == 0 })
}

func TestSameOrigin(t *testing.T) {
	tests := []struct {
		name   string
		origin string
		want   bool
	}{
		{"no origin", "", true},
		{"same host", "http://localhost:8080", true},
		{"same host over https", "https://LOCALHOST:8080", true},
		{"host suffix", "http://localhost:8080.evil.com", false},
		{"other port", "http://localhost:9090", false},
		{"other host", "http://evil.com", false},
		{"malformed", "http://%zz", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "http://localhost:8080/api/events", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := sameOrigin(r); got != tt.want {
				t.Errorf("sameOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}

// TestClientRoundTrip drives a list controller against the server through the HTTP client and
// the websocket push client.
func TestClientRoundTrip(t *testing.T) {
	ts, _ := newTestServer(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	api := services.NewAdminAPI(ts.URL, ts.Client())
	push := services.NewPushClient("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/events", "", 10*time.Millisecond, nil)
	go push.Run(ctx)
	tu.WaitFor(t, "push connected", push.Connected)

	ctrl, err := listsync.NewController(listsync.Config[models.Note]{
		Resource: string(models.ResourceNotes),
		Events:   []string{"note_created", "note_updated", "note_deleted"},
		PageSize: 10,
		Query:    url.Values{"category": {"work"}},
		Fields:   []listsync.FieldSpec{{Name: "category", Kind: listsync.KindText}},
		Key:      models.Note.Key,
		Fetcher:  services.NewResourceFetcher[models.Note](api, models.ResourceNotes),
		Realtime: listsync.NewMultiplexer(push, listsync.WithCoalesceWindow(5*time.Millisecond)),
	})
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}
	if err := ctrl.Mount(ctx); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}
	t.Cleanup(ctrl.Unmount)

	tu.WaitFor(t, "initial empty list", func() bool { return ctrl.Snapshot().State == listsync.StateEmpty })

	err = api.Mutate(ctx, listsync.Mutation{
		Resource: string(models.ResourceNotes),
		Action:   listsync.ActionCreate,
		Payload:  listsync.Payload{"title": "Standup", "category": "work"},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	tu.WaitFor(t, "pushed note", func() bool {
		snap := ctrl.Snapshot()
		return len(snap.Items) == 1 && snap.Items[0].Title == "Standup"
	})
}
