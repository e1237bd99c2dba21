package screens

import (
	"fmt"
	"strconv"
	"time"

	"github.com/desertthunder/notedesk/internal/listsync"
	"github.com/desertthunder/notedesk/internal/models"
	"github.com/desertthunder/notedesk/internal/shared"
	"github.com/dustin/go-humanize"
)

var (
	searchField = listsync.FieldSpec{Name: "search", Kind: listsync.KindText}
	userField   = listsync.FieldSpec{Name: "user_id", Kind: listsync.KindText}
	fromField   = listsync.FieldSpec{Name: "from", Kind: listsync.KindDate}
	toField     = listsync.FieldSpec{Name: "to", Kind: listsync.KindDate}
)

func sortField(def string, columns ...string) listsync.FieldSpec {
	opts := make([]string, 0, len(columns)*2)
	for _, c := range columns {
		opts = append(opts, c, "-"+c)
	}
	return listsync.FieldSpec{Name: "sort", Kind: listsync.KindEnum, Default: def, Options: opts}
}

func spec[T any](r models.Resource, a listsync.Action, needsTarget bool) listsync.ActionSpec[T] {
	return listsync.ActionSpec[T]{Action: a, Capability: r.Capability(string(a)), NeedsTarget: needsTarget}
}

func require(keys ...string) func(listsync.Payload) error {
	return func(p listsync.Payload) error {
		for _, k := range keys {
			if p.String(k) == "" {
				return fmt.Errorf("%w: %s is required", shared.ErrValidation, k)
			}
		}
		return nil
	}
}

func oneOf(key string, allowed ...string) func(listsync.Payload) error {
	return func(p listsync.Payload) error {
		v := p.String(key)
		if v == "" {
			return nil
		}
		for _, a := range allowed {
			if v == a {
				return nil
			}
		}
		return fmt.Errorf("%w: %s must be one of %v, got %q", shared.ErrValidation, key, allowed, v)
	}
}

func all(checks ...func(listsync.Payload) error) func(listsync.Payload) error {
	return func(p listsync.Payload) error {
		for _, c := range checks {
			if err := c(p); err != nil {
				return err
			}
		}
		return nil
	}
}

func ago(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return humanize.Time(t)
}

func flag(b bool, s string) string {
	if b {
		return s
	}
	return ""
}

// Notes lists user notes.
var Notes = Definition[models.Note]{
	resource: models.ResourceNotes,
	title:    "Notes",
	fields: []listsync.FieldSpec{
		searchField, userField,
		{Name: "category", Kind: listsync.KindText},
		{Name: "folder_id", Kind: listsync.KindText},
		{Name: "priority", Kind: listsync.KindEnum, Options: []string{"low", "medium", "high"}},
		{Name: "status", Kind: listsync.KindEnum, Default: "active", Options: []string{"active", "archived", "all"}},
		fromField, toField,
		sortField("-updated_at", "updated_at", "created_at", "title", "priority"),
	},
	events: []string{"note_created", "note_updated", "note_deleted", "note_pinned", "note_archived", "note_moved", "notes_bulk_updated"},
	actions: []listsync.ActionSpec[models.Note]{
		withValidate(spec[models.Note](models.ResourceNotes, listsync.ActionCreate, false),
			all(require("title", "user_id"), oneOf("priority", "low", "medium", "high"))),
		withValidate(spec[models.Note](models.ResourceNotes, listsync.ActionEdit, true),
			oneOf("priority", "low", "medium", "high")),
		spec[models.Note](models.ResourceNotes, listsync.ActionDelete, true),
		withPatch(spec[models.Note](models.ResourceNotes, listsync.ActionPin, true),
			func(n models.Note, _ listsync.Payload) models.Note { n.IsPinned = true; return n }),
		withPatch(spec[models.Note](models.ResourceNotes, listsync.ActionUnpin, true),
			func(n models.Note, _ listsync.Payload) models.Note { n.IsPinned = false; return n }),
		withPatch(spec[models.Note](models.ResourceNotes, listsync.ActionArchive, true),
			func(n models.Note, _ listsync.Payload) models.Note { n.IsArchived = true; return n }),
		withPatch(spec[models.Note](models.ResourceNotes, listsync.ActionUnarchive, true),
			func(n models.Note, _ listsync.Payload) models.Note { n.IsArchived = false; return n }),
		withPatch(withValidate(spec[models.Note](models.ResourceNotes, listsync.ActionMove, true), require("folder_id")),
			func(n models.Note, p listsync.Payload) models.Note { n.FolderID = p.String("folder_id"); return n }),
	},
	columns: []string{"ID", "TITLE", "USER", "CATEGORY", "PRIORITY", "FLAGS", "UPDATED"},
	row: func(n models.Note) []string {
		return []string{
			n.ID, truncate(n.Title, 40), n.UserID, n.Category, n.Priority,
			flag(n.IsPinned, "pinned") + flag(n.IsPinned && n.IsArchived, ",") + flag(n.IsArchived, "archived"),
			ago(n.UpdatedAt),
		}
	},
}

// Tags lists user-defined tags.
var Tags = Definition[models.Tag]{
	resource: models.ResourceTags,
	title:    "Tags",
	fields:   []listsync.FieldSpec{searchField, userField, sortField("name", "name", "note_count", "updated_at")},
	events:   []string{"tag_created", "tag_updated", "tag_deleted", "note_updated"},
	actions: []listsync.ActionSpec[models.Tag]{
		withValidate(spec[models.Tag](models.ResourceTags, listsync.ActionCreate, false), require("name", "user_id")),
		spec[models.Tag](models.ResourceTags, listsync.ActionEdit, true),
		spec[models.Tag](models.ResourceTags, listsync.ActionDelete, true),
	},
	columns: []string{"ID", "NAME", "USER", "COLOR", "NOTES", "UPDATED"},
	row: func(t models.Tag) []string {
		return []string{t.ID, t.Name, t.UserID, t.Color, strconv.Itoa(t.NoteCount), ago(t.UpdatedAt)}
	},
}

// Folders lists note folders.
var Folders = Definition[models.Folder]{
	resource: models.ResourceFolders,
	title:    "Folders",
	fields: []listsync.FieldSpec{
		searchField, userField,
		{Name: "parent_id", Kind: listsync.KindText},
		sortField("name", "name", "note_count", "updated_at"),
	},
	events: []string{"folder_created", "folder_updated", "folder_deleted", "note_moved"},
	actions: []listsync.ActionSpec[models.Folder]{
		withValidate(spec[models.Folder](models.ResourceFolders, listsync.ActionCreate, false), require("name", "user_id")),
		spec[models.Folder](models.ResourceFolders, listsync.ActionEdit, true),
		spec[models.Folder](models.ResourceFolders, listsync.ActionDelete, true),
		withPatch(spec[models.Folder](models.ResourceFolders, listsync.ActionMove, true),
			func(f models.Folder, p listsync.Payload) models.Folder { f.ParentID = p.String("parent_id"); return f }),
	},
	columns: []string{"ID", "NAME", "USER", "PARENT", "NOTES", "UPDATED"},
	row: func(f models.Folder) []string {
		name := f.Name
		if f.Icon != "" {
			name = f.Icon + " " + name
		}
		return []string{f.ID, name, f.UserID, f.ParentID, strconv.Itoa(f.NoteCount), ago(f.UpdatedAt)}
	},
}

// SharedNotes lists note sharing grants.
var SharedNotes = Definition[models.SharedNote]{
	resource: models.ResourceSharedNotes,
	title:    "Shared Notes",
	fields: []listsync.FieldSpec{
		searchField, userField,
		{Name: "shared_with", Kind: listsync.KindText},
		{Name: "permission", Kind: listsync.KindEnum, Options: []string{"read", "write"}},
		{Name: "status", Kind: listsync.KindEnum, Default: "active", Options: []string{"active", "expired", "all"}},
		sortField("-created_at", "created_at", "note_title", "expires_at"),
	},
	events: []string{"note_shared", "share_revoked", "note_deleted"},
	actions: []listsync.ActionSpec[models.SharedNote]{
		withValidate(spec[models.SharedNote](models.ResourceSharedNotes, listsync.ActionCreate, false),
			all(require("note_id", "note_title", "user_id", "shared_with"), oneOf("permission", "read", "write"))),
		withValidate(spec[models.SharedNote](models.ResourceSharedNotes, listsync.ActionEdit, true),
			oneOf("permission", "read", "write")),
		spec[models.SharedNote](models.ResourceSharedNotes, listsync.ActionRevoke, true),
	},
	columns: []string{"ID", "NOTE", "OWNER", "SHARED WITH", "PERMISSION", "EXPIRES"},
	row: func(s models.SharedNote) []string {
		expires := "never"
		if s.ExpiresAt != nil {
			expires = humanize.Time(*s.ExpiresAt)
			if s.Expired(time.Now()) {
				expires = "expired " + expires
			}
		}
		return []string{s.ID, truncate(s.NoteTitle, 32), s.OwnerID, s.SharedWith, s.Permission, expires}
	},
}

// ChatSettings lists per-user chat assistant settings.
var ChatSettings = Definition[models.ChatSetting]{
	resource: models.ResourceChatSettings,
	title:    "Chat Settings",
	fields: []listsync.FieldSpec{
		searchField, userField,
		{Name: "model", Kind: listsync.KindText},
		{Name: "enabled", Kind: listsync.KindEnum, Options: []string{"true", "false"}},
		sortField("user_id", "user_id", "model", "updated_at"),
	},
	events: []string{"chat_settings_updated", "user_created", "user_deleted"},
	actions: []listsync.ActionSpec[models.ChatSetting]{
		withValidate(spec[models.ChatSetting](models.ResourceChatSettings, listsync.ActionEdit, true), validateChatSetting),
		spec[models.ChatSetting](models.ResourceChatSettings, listsync.ActionDelete, true),
	},
	columns: []string{"ID", "USER", "MODEL", "TEMP", "MAX TOKENS", "ENABLED", "UPDATED"},
	row: func(c models.ChatSetting) []string {
		return []string{
			c.ID, c.UserID, c.Model, strconv.FormatFloat(c.Temperature, 'f', 2, 64),
			humanize.Comma(int64(c.MaxTokens)), strconv.FormatBool(c.Enabled), ago(c.UpdatedAt),
		}
	},
}

func validateChatSetting(p listsync.Payload) error {
	if raw := p.String("temperature"); raw != "" {
		t, err := strconv.ParseFloat(raw, 64)
		if err != nil || t < 0 || t > 2 {
			return fmt.Errorf("%w: temperature must be between 0 and 2, got %q", shared.ErrValidation, raw)
		}
	}
	if raw := p.String("max_tokens"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return fmt.Errorf("%w: max_tokens must be a positive integer, got %q", shared.ErrValidation, raw)
		}
	}
	return nil
}

func withValidate[T any](s listsync.ActionSpec[T], fn func(listsync.Payload) error) listsync.ActionSpec[T] {
	s.Validate = fn
	return s
}

func withPatch[T any](s listsync.ActionSpec[T], fn func(T, listsync.Payload) T) listsync.ActionSpec[T] {
	s.Optimistic = fn
	return s
}
