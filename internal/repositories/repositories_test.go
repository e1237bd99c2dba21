package repositories

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/notedesk/internal/models"
	"github.com/desertthunder/notedesk/internal/shared"
	"github.com/google/go-cmp/cmp"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func seed(t *testing.T, repo *RecordRepository, resource models.Resource, payloads ...map[string]any) []*models.Record {
	t.Helper()
	records := make([]*models.Record, 0, len(payloads))
	for _, p := range payloads {
		rec := models.NewRecord(resource, p)
		if err := repo.Create(rec); err != nil {
			t.Fatalf("Create(%v) failed: %v", p, err)
		}
		records = append(records, rec)
	}
	return records
}

func titles(records []*models.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Title
	}
	return out
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)

	for want := 1; want <= 3; want++ {
		got, err := NextSequence(db, "records")
		if err != nil {
			t.Fatalf("NextSequence failed: %v", err)
		}
		if got != want {
			t.Errorf("expected sequence %d, got %d", want, got)
		}
	}

	if _, err := NextSequence(db, "missing"); err == nil {
		t.Error("expected error for missing sequence table")
	}
}

func TestRecordRepository(t *testing.T) {
	t.Run("Create and Get", func(t *testing.T) {
		repo := NewRecordRepository(setupTestDB(t))
		rec := seed(t, repo, models.ResourceNotes, map[string]any{
			"title": "Groceries", "user_id": "u1", "category": "home", "content": "milk", "is_pinned": true,
		})[0]

		if rec.ID == "" || rec.Sequence != 1 {
			t.Fatalf("expected generated ID and sequence 1, got %q/%d", rec.ID, rec.Sequence)
		}

		got, err := repo.Get(models.ResourceNotes, rec.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Title != "Groceries" || got.UserID != "u1" || got.Category != "home" || !got.Pinned {
			t.Errorf("unexpected record: %+v", got)
		}
		if got.Data["content"] != "milk" {
			t.Errorf("expected content in data, got %v", got.Data)
		}
	})

	t.Run("Create rejects an invalid record", func(t *testing.T) {
		repo := NewRecordRepository(setupTestDB(t))
		err := repo.Create(models.NewRecord(models.ResourceNotes, map[string]any{"content": "no title"}))
		if !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("Get is scoped to the resource", func(t *testing.T) {
		repo := NewRecordRepository(setupTestDB(t))
		rec := seed(t, repo, models.ResourceTags, map[string]any{"name": "work"})[0]

		if _, err := repo.Get(models.ResourceNotes, rec.ID); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Update", func(t *testing.T) {
		repo := NewRecordRepository(setupTestDB(t))
		rec := seed(t, repo, models.ResourceNotes, map[string]any{"title": "Draft"})[0]

		rec.Apply(map[string]any{"title": "Final", "is_archived": true})
		if err := repo.Update(rec); err != nil {
			t.Fatalf("Update failed: %v", err)
		}

		got, err := repo.Get(models.ResourceNotes, rec.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Title != "Final" || !got.Archived {
			t.Errorf("update not persisted: %+v", got)
		}
	})

	t.Run("Update missing record", func(t *testing.T) {
		repo := NewRecordRepository(setupTestDB(t))
		rec := models.NewRecord(models.ResourceNotes, map[string]any{"title": "ghost"})
		rec.ID = "nope"
		if err := repo.Update(rec); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Delete is soft and not repeatable", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewRecordRepository(db)
		rec := seed(t, repo, models.ResourceFolders, map[string]any{"name": "Inbox"})[0]

		if err := repo.Delete(models.ResourceFolders, rec.ID); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := repo.Get(models.ResourceFolders, rec.ID); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected deleted record to be hidden, got %v", err)
		}
		if err := repo.Delete(models.ResourceFolders, rec.ID); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound on second delete, got %v", err)
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM records WHERE id = ?", rec.ID).Scan(&count); err != nil {
			t.Fatalf("count failed: %v", err)
		}
		if count != 1 {
			t.Errorf("expected row to remain after soft delete, got %d", count)
		}
	})
}

func TestRecordRepositoryList(t *testing.T) {
	repo := NewRecordRepository(setupTestDB(t))
	seed(t, repo, models.ResourceNotes,
		map[string]any{"title": "Alpha", "user_id": "u1", "category": "work", "priority": "high", "folder_id": "f1"},
		map[string]any{"title": "Bravo", "user_id": "u1", "category": "home", "priority": "low", "is_archived": true},
		map[string]any{"title": "Charlie", "user_id": "u2", "category": "work", "priority": "medium", "folder_id": "f1"},
		map[string]any{"title": "Delta", "user_id": "u2", "content": "alpha mention"},
	)
	seed(t, repo, models.ResourceTags, map[string]any{"name": "Alpha tag"})

	tests := []struct {
		name    string
		filters map[string]string
		want    []string
	}{
		{"no filters", nil, []string{"Alpha", "Bravo", "Charlie", "Delta"}},
		{"search matches title and document", map[string]string{"search": "alpha"}, []string{"Alpha", "Delta"}},
		{"user", map[string]string{"user_id": "u2"}, []string{"Charlie", "Delta"}},
		{"category", map[string]string{"category": "work"}, []string{"Alpha", "Charlie"}},
		{"active", map[string]string{"status": "active"}, []string{"Alpha", "Charlie", "Delta"}},
		{"archived", map[string]string{"status": "archived"}, []string{"Bravo"}},
		{"all", map[string]string{"status": "all"}, []string{"Alpha", "Bravo", "Charlie", "Delta"}},
		{"document field", map[string]string{"folder_id": "f1"}, []string{"Alpha", "Charlie"}},
		{"empty values ignored", map[string]string{"category": ""}, []string{"Alpha", "Bravo", "Charlie", "Delta"}},
		{"sort descending", map[string]string{"sort": "-title"}, []string{"Delta", "Charlie", "Bravo", "Alpha"}},
		{"sort by priority", map[string]string{"sort": "-priority"}, []string{"Alpha", "Charlie", "Bravo", "Delta"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := repo.List(Criteria{Resource: models.ResourceNotes, Filters: tc.filters, Page: 1, PageSize: 10})
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if diff := cmp.Diff(tc.want, titles(result.Records)); diff != "" {
				t.Errorf("titles mismatch (-want +got):\n%s", diff)
			}
			if result.Total != len(tc.want) {
				t.Errorf("expected total %d, got %d", len(tc.want), result.Total)
			}
		})
	}

	t.Run("pagination", func(t *testing.T) {
		result, err := repo.List(Criteria{Resource: models.ResourceNotes, Page: 2, PageSize: 3})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if diff := cmp.Diff([]string{"Delta"}, titles(result.Records)); diff != "" {
			t.Errorf("page 2 mismatch (-want +got):\n%s", diff)
		}
		if result.Total != 4 {
			t.Errorf("expected total 4, got %d", result.Total)
		}
	})

	t.Run("page beyond the end is empty", func(t *testing.T) {
		result, err := repo.List(Criteria{Resource: models.ResourceNotes, Page: 9, PageSize: 3})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(result.Records) != 0 || result.Total != 4 {
			t.Errorf("expected no records with total 4, got %d/%d", len(result.Records), result.Total)
		}
	})

	for _, filters := range []map[string]string{
		{"color": "red"},
		{"sort": "bogus"},
		{"status": "sideways"},
		{"enabled": "maybe"},
	} {
		t.Run("rejects invalid criteria", func(t *testing.T) {
			_, err := repo.List(Criteria{Resource: models.ResourceNotes, Filters: filters})
			if !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument for %v, got %v", filters, err)
			}
		})
	}
}

func TestRecordRepositoryDates(t *testing.T) {
	repo := NewRecordRepository(setupTestDB(t))

	for _, day := range []string{"2024-01-10", "2024-02-15", "2024-03-20"} {
		created, _ := time.Parse("2006-01-02", day)
		rec := models.NewRecord(models.ResourceNotes, map[string]any{"title": day})
		rec.CreatedAt, rec.UpdatedAt = created, created
		if err := repo.Create(rec); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	result, err := repo.List(Criteria{
		Resource: models.ResourceNotes,
		Filters:  map[string]string{"from": "2024-02-01", "to": "2024-03-20"},
	})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if diff := cmp.Diff([]string{"2024-02-15", "2024-03-20"}, titles(result.Records)); diff != "" {
		t.Errorf("date range mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordRepositorySharedStatus(t *testing.T) {
	repo := NewRecordRepository(setupTestDB(t))
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	seed(t, repo, models.ResourceSharedNotes,
		map[string]any{"note_title": "Open", "permission": "read"},
		map[string]any{"note_title": "Future", "permission": "write", "expires_at": now.Add(time.Hour).Format(time.RFC3339)},
		map[string]any{"note_title": "Lapsed", "permission": "read", "expires_at": now.Add(-time.Hour).Format(time.RFC3339)},
	)

	tests := []struct {
		filters map[string]string
		want    []string
	}{
		{map[string]string{"status": "active"}, []string{"Open", "Future"}},
		{map[string]string{"status": "expired"}, []string{"Lapsed"}},
		{map[string]string{"status": "all", "permission": "read"}, []string{"Open", "Lapsed"}},
	}

	for _, tc := range tests {
		result, err := repo.List(Criteria{Resource: models.ResourceSharedNotes, Filters: tc.filters})
		if err != nil {
			t.Fatalf("List(%v) failed: %v", tc.filters, err)
		}
		if diff := cmp.Diff(tc.want, titles(result.Records)); diff != "" {
			t.Errorf("List(%v) mismatch (-want +got):\n%s", tc.filters, diff)
		}
	}
}

func TestRecordRepositoryEnabled(t *testing.T) {
	repo := NewRecordRepository(setupTestDB(t))
	seed(t, repo, models.ResourceChatSettings,
		map[string]any{"model": "gpt-4o", "enabled": true},
		map[string]any{"model": "claude", "enabled": false},
	)

	result, err := repo.List(Criteria{Resource: models.ResourceChatSettings, Filters: map[string]string{"enabled": "true"}})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if diff := cmp.Diff([]string{"gpt-4o"}, titles(result.Records)); diff != "" {
		t.Errorf("enabled mismatch (-want +got):\n%s", diff)
	}
}

func TestEventLog(t *testing.T) {
	log := NewEventLog(setupTestDB(t))

	for _, name := range []string{"note_created", "note_updated", "tag_deleted"} {
		if err := log.Append(name, "notes", "id-"+name); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	events, err := log.Recent(2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}

	got := []string{}
	for _, e := range events {
		got = append(got, e.Name)
	}
	if diff := cmp.Diff([]string{"tag_deleted", "note_updated"}, got); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}
