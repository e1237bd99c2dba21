package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record is the persisted form of any resource.
//
// Filterable attributes are promoted to fields; Data holds the remaining document.
type Record struct {
	ID        string
	Sequence  int
	Resource  Resource
	UserID    string
	Title     string
	Category  string
	Priority  string
	Pinned    bool
	Archived  bool
	Data      map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// NewRecord builds a record from a create payload, promoting the filterable keys.
func NewRecord(resource Resource, payload map[string]any) *Record {
	now := time.Now().UTC()
	r := &Record{
		Resource:  resource,
		Data:      map[string]any{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.Apply(payload)
	return r
}

// Apply merges payload into the record.
func (r *Record) Apply(payload map[string]any) {
	if r.Data == nil {
		r.Data = map[string]any{}
	}
	for k, v := range payload {
		switch k {
		case "id", "created_at", "updated_at":
			continue
		case "user_id":
			r.UserID = fmt.Sprint(v)
		case "title", "name", "note_title", "model":
			r.Title = fmt.Sprint(v)
		case "category":
			r.Category = fmt.Sprint(v)
		case "priority":
			r.Priority = fmt.Sprint(v)
		case "is_pinned":
			r.Pinned, _ = v.(bool)
			continue
		case "is_archived":
			r.Archived, _ = v.(bool)
			continue
		}
		r.Data[k] = v
	}
}

// Validate checks that the record can be stored.
func (r *Record) Validate() error {
	if r.Resource == "" {
		return fmt.Errorf("resource is required")
	}
	if _, err := ParseResource(string(r.Resource)); err != nil {
		return err
	}
	if r.Title == "" {
		return fmt.Errorf("title is required")
	}
	return nil
}

// Document renders the record as the API's JSON object.
func (r *Record) Document() map[string]any {
	doc := make(map[string]any, len(r.Data)+5)
	for k, v := range r.Data {
		doc[k] = v
	}
	doc["id"] = r.ID
	doc["user_id"] = r.UserID
	doc["is_pinned"] = r.Pinned
	doc["is_archived"] = r.Archived
	doc["created_at"] = r.CreatedAt
	doc["updated_at"] = r.UpdatedAt
	return doc
}

// MarshalJSON encodes the record as its document.
func (r *Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Document())
}
