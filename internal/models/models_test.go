package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseResource(t *testing.T) {
	tt := []struct {
		in      string
		want    Resource
		wantErr bool
	}{
		{in: "notes", want: ResourceNotes},
		{in: "Shared_Notes", want: ResourceSharedNotes},
		{in: " chat-settings ", want: ResourceChatSettings},
		{in: "users", wantErr: true},
	}

	for _, tc := range tt {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseResource(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Errorf("expected error for %q", tc.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("ParseResource(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestCapability(t *testing.T) {
	if got := ResourceNotes.Capability("edit"); got != "manage_notes.edit" {
		t.Errorf("expected manage_notes.edit, got %s", got)
	}
	if got := ResourceSharedNotes.Capability("delete"); got != "manage_shared_notes.delete" {
		t.Errorf("expected manage_shared_notes.delete, got %s", got)
	}
}

func TestTotalPagesFor(t *testing.T) {
	tt := []struct{ items, size, want int }{
		{0, 20, 0},
		{1, 20, 1},
		{20, 20, 1},
		{21, 20, 2},
		{57, 20, 3},
		{10, 0, 0},
	}
	for _, tc := range tt {
		if got := TotalPagesFor(tc.items, tc.size); got != tc.want {
			t.Errorf("TotalPagesFor(%d, %d) = %d, want %d", tc.items, tc.size, got, tc.want)
		}
	}
}

func TestRecord(t *testing.T) {
	t.Run("NewRecord promotes filterable keys", func(t *testing.T) {
		r := NewRecord(ResourceNotes, map[string]any{
			"title":     "Invoice follow-up",
			"user_id":   "u1",
			"category":  "work",
			"priority":  "high",
			"is_pinned": true,
			"content":   "call the client",
		})

		if r.Title != "Invoice follow-up" || r.UserID != "u1" || r.Category != "work" || r.Priority != "high" {
			t.Errorf("unexpected promoted fields: %+v", r)
		}
		if !r.Pinned {
			t.Error("expected record to be pinned")
		}
		if _, ok := r.Data["is_pinned"]; ok {
			t.Error("flags should not be duplicated into data")
		}
		if err := r.Validate(); err != nil {
			t.Errorf("expected valid record: %v", err)
		}
	})

	t.Run("Validate requires a title", func(t *testing.T) {
		r := NewRecord(ResourceTags, map[string]any{"color": "red"})
		if err := r.Validate(); err == nil {
			t.Error("expected validation error")
		}
	})

	t.Run("Document decodes into the DTO", func(t *testing.T) {
		r := NewRecord(ResourceNotes, map[string]any{"title": "a", "user_id": "u1", "is_archived": true})
		r.ID = "n1"

		data, err := json.Marshal(r)
		if err != nil {
			t.Fatalf("failed to marshal record: %v", err)
		}

		var note Note
		if err := json.Unmarshal(data, &note); err != nil {
			t.Fatalf("failed to decode note: %v", err)
		}
		if note.ID != "n1" || note.Title != "a" || !note.IsArchived || note.Key() != "n1" {
			t.Errorf("unexpected note: %+v", note)
		}
	})
}

func TestSharedNoteExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	if (SharedNote{}).Expired(now) {
		t.Error("share without expiry should not be expired")
	}
	if !(SharedNote{ExpiresAt: &past}).Expired(now) {
		t.Error("share in the past should be expired")
	}
	if (SharedNote{ExpiresAt: &future}).Expired(now) {
		t.Error("share in the future should not be expired")
	}
}
