// package models defines the data model for the admin console
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Resource names an admin API collection.
type Resource string

const (
	ResourceNotes        Resource = "notes"
	ResourceTags         Resource = "tags"
	ResourceFolders      Resource = "folders"
	ResourceSharedNotes  Resource = "shared-notes"
	ResourceChatSettings Resource = "chat-settings"
)

// Resources lists every resource in menu order.
var Resources = []Resource{ResourceNotes, ResourceTags, ResourceFolders, ResourceSharedNotes, ResourceChatSettings}

// ParseResource resolves a resource by name, accepting underscores for dashes.
func ParseResource(s string) (Resource, error) {
	normalized := Resource(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-"))
	for _, r := range Resources {
		if r == normalized {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown resource %q", s)
}

// Capability returns the capability token for an action on this resource, e.g. manage_notes.edit.
func (r Resource) Capability(action string) string {
	return fmt.Sprintf("manage_%s.%s", strings.ReplaceAll(string(r), "-", "_"), action)
}

// Keyed is implemented by every resource DTO.
type Keyed interface {
	Key() string
}

// Pagination is the server-reported page metadata.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// TotalPagesFor computes the page count for total items, with zero items yielding zero pages.
func TotalPagesFor(totalItems, pageSize int) int {
	if pageSize <= 0 || totalItems <= 0 {
		return 0
	}
	return (totalItems + pageSize - 1) / pageSize
}

// ListResponse is the admin API list envelope.
type ListResponse struct {
	Items      json.RawMessage `json:"items"`
	Pagination Pagination      `json:"pagination"`
}

// Note is a user note.
type Note struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Title      string    `json:"title"`
	Content    string    `json:"content,omitempty"`
	Category   string    `json:"category,omitempty"`
	Priority   string    `json:"priority,omitempty"`
	FolderID   string    `json:"folder_id,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	IsPinned   bool      `json:"is_pinned"`
	IsArchived bool      `json:"is_archived"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (n Note) Key() string { return n.ID }

// Tag is a user-defined label.
type Tag struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	NoteCount int       `json:"note_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t Tag) Key() string { return t.ID }

// Folder groups notes; ParentID is empty for top-level folders.
type Folder struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	ParentID  string    `json:"parent_id,omitempty"`
	Icon      string    `json:"icon,omitempty"`
	NoteCount int       `json:"note_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (f Folder) Key() string { return f.ID }

// SharedNote is a grant giving SharedWith access to a note owned by OwnerID.
type SharedNote struct {
	ID         string     `json:"id"`
	NoteID     string     `json:"note_id"`
	NoteTitle  string     `json:"note_title"`
	OwnerID    string     `json:"user_id"`
	SharedWith string     `json:"shared_with"`
	Permission string     `json:"permission"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (s SharedNote) Key() string { return s.ID }

// Expired reports whether the grant has lapsed at now.
func (s SharedNote) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !s.ExpiresAt.After(now)
}

// ChatSetting holds a user's chat assistant preferences.
type ChatSetting struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Model        string    `json:"model"`
	Temperature  float64   `json:"temperature"`
	MaxTokens    int       `json:"max_tokens"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	Enabled      bool      `json:"enabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (c ChatSetting) Key() string { return c.ID }
