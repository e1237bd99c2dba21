package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/notedesk/internal/events"
	"github.com/desertthunder/notedesk/internal/models"
	"github.com/desertthunder/notedesk/internal/repositories"
	"github.com/desertthunder/notedesk/internal/shared"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// eventNames maps each resource and mutation to the push event it emits.
var eventNames = map[models.Resource]map[string]string{
	models.ResourceNotes: {
		"create": "note_created", "edit": "note_updated", "delete": "note_deleted",
		"pin": "note_pinned", "unpin": "note_pinned",
		"archive": "note_archived", "unarchive": "note_archived",
		"move": "note_moved",
	},
	models.ResourceTags: {
		"create": "tag_created", "edit": "tag_updated", "delete": "tag_deleted",
	},
	models.ResourceFolders: {
		"create": "folder_created", "edit": "folder_updated", "delete": "folder_deleted",
		"move": "folder_updated",
	},
	models.ResourceSharedNotes: {
		"create": "note_shared", "edit": "note_shared", "delete": "share_revoked",
		"revoke": "share_revoked",
	},
	models.ResourceChatSettings: {
		"create": "chat_settings_updated", "edit": "chat_settings_updated", "delete": "chat_settings_updated",
	},
}

// moveFields names the payload key a move action reads per resource.
var moveFields = map[models.Resource]string{
	models.ResourceNotes:   "folder_id",
	models.ResourceFolders: "parent_id",
}

type listEnvelope struct {
	Items      []*models.Record  `json:"items"`
	Pagination models.Pagination `json:"pagination"`
}

// APIHandler serves the admin record API.
type APIHandler struct {
	records *repositories.RecordRepository
	log     *repositories.EventLog
	bus     *events.Bus
	logger  *log.Logger
}

// NewAPIHandler creates an [APIHandler]. A nil event log skips the audit trail.
func NewAPIHandler(records *repositories.RecordRepository, eventLog *repositories.EventLog, bus *events.Bus, logger *log.Logger) *APIHandler {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &APIHandler{records: records, log: eventLog, bus: bus, logger: shared.WithLogger(logger, "component", "api")}
}

// Routes returns the HTTP routes this handler serves.
func (h *APIHandler) Routes() []string {
	return []string{"/api/{resource}", "/api/{resource}/{id}", "/api/{resource}/{id}/{action}"}
}

// ServeHTTP dispatches on method and path shape.
func (h *APIHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resource, err := models.ParseResource(r.PathValue("resource"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	id, action := r.PathValue("id"), r.PathValue("action")
	switch {
	case id == "" && r.Method == http.MethodGet:
		h.list(w, r, resource)
	case id == "" && r.Method == http.MethodPost:
		h.create(w, r, resource)
	case id != "" && action == "" && r.Method == http.MethodGet:
		h.get(w, r, resource, id)
	case id != "" && action == "" && r.Method == http.MethodPatch:
		h.edit(w, r, resource, id)
	case id != "" && action == "" && r.Method == http.MethodDelete:
		h.delete(w, r, resource, id)
	case action != "" && r.Method == http.MethodPost:
		h.action(w, r, resource, id, action)
	default:
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed on %s", r.Method, r.URL.Path))
	}
}

func (h *APIHandler) list(w http.ResponseWriter, r *http.Request, resource models.Resource) {
	criteria, err := criteriaFromQuery(resource, r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.records.List(criteria)
	if err != nil {
		h.fail(w, "list", resource, err)
		return
	}

	writeJSON(w, http.StatusOK, listEnvelope{
		Items: result.Records,
		Pagination: models.Pagination{
			Page:       criteria.Page,
			PageSize:   criteria.PageSize,
			TotalItems: result.Total,
			TotalPages: models.TotalPagesFor(result.Total, criteria.PageSize),
		},
	})
}

func criteriaFromQuery(resource models.Resource, q url.Values) (repositories.Criteria, error) {
	c := repositories.Criteria{Resource: resource, Filters: map[string]string{}, Page: 1, PageSize: defaultPageSize}

	for key := range q {
		value := q.Get(key)
		switch key {
		case "page":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				return c, fmt.Errorf("%w: page must be a positive integer, got %q", shared.ErrInvalidArgument, value)
			}
			c.Page = n
		case "page_size":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				return c, fmt.Errorf("%w: page_size must be a positive integer, got %q", shared.ErrInvalidArgument, value)
			}
			c.PageSize = min(n, maxPageSize)
		default:
			c.Filters[key] = value
		}
	}
	return c, nil
}

func (h *APIHandler) get(w http.ResponseWriter, _ *http.Request, resource models.Resource, id string) {
	rec, err := h.records.Get(resource, id)
	if err != nil {
		h.fail(w, "get", resource, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *APIHandler) create(w http.ResponseWriter, r *http.Request, resource models.Resource) {
	if !h.allowed(w, r, resource, "create") {
		return
	}
	payload, err := decodePayload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	rec := models.NewRecord(resource, payload)
	if err := h.records.Create(rec); err != nil {
		h.fail(w, "create", resource, err)
		return
	}

	h.emit(resource, "create", rec.ID)
	writeJSON(w, http.StatusCreated, rec)
}

func (h *APIHandler) edit(w http.ResponseWriter, r *http.Request, resource models.Resource, id string) {
	if !h.allowed(w, r, resource, "edit") {
		return
	}
	payload, err := decodePayload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	rec, err := h.update(resource, id, func(rec *models.Record) error {
		rec.Apply(payload)
		return nil
	})
	if err != nil {
		h.fail(w, "edit", resource, err)
		return
	}

	h.emit(resource, "edit", id)
	writeJSON(w, http.StatusOK, rec)
}

func (h *APIHandler) delete(w http.ResponseWriter, r *http.Request, resource models.Resource, id string) {
	if !h.allowed(w, r, resource, "delete") {
		return
	}
	if err := h.records.Delete(resource, id); err != nil {
		h.fail(w, "delete", resource, err)
		return
	}

	h.emit(resource, "delete", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) action(w http.ResponseWriter, r *http.Request, resource models.Resource, id, action string) {
	if _, ok := eventNames[resource][action]; !ok || action == "create" || action == "edit" || action == "delete" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %s does not support %q", shared.ErrUnknownAction, resource, action))
		return
	}
	if !h.allowed(w, r, resource, action) {
		return
	}
	payload, err := decodePayload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if action == "revoke" {
		if err := h.records.Delete(resource, id); err != nil {
			h.fail(w, action, resource, err)
			return
		}
		h.emit(resource, action, id)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	rec, err := h.update(resource, id, func(rec *models.Record) error {
		switch action {
		case "pin", "unpin":
			rec.Pinned = action == "pin"
		case "archive", "unarchive":
			rec.Archived = action == "archive"
		case "move":
			field := moveFields[resource]
			dest, ok := payload[field]
			if !ok {
				return fmt.Errorf("%w: move requires %s", shared.ErrInvalidArgument, field)
			}
			rec.Data[field] = dest
		}
		return nil
	})
	if err != nil {
		h.fail(w, action, resource, err)
		return
	}

	h.emit(resource, action, id)
	writeJSON(w, http.StatusOK, rec)
}

func (h *APIHandler) update(resource models.Resource, id string, fn func(*models.Record) error) (*models.Record, error) {
	rec, err := h.records.Get(resource, id)
	if err != nil {
		return nil, err
	}
	if err := fn(rec); err != nil {
		return nil, err
	}
	if err := h.records.Update(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// allowed enforces the session's capabilities when the request is authenticated.
func (h *APIHandler) allowed(w http.ResponseWriter, r *http.Request, resource models.Resource, action string) bool {
	session, ok := SessionFrom(r.Context())
	if !ok {
		return true
	}
	token := resource.Capability(action)
	if session.Gate().Has(token) {
		return true
	}
	writeError(w, http.StatusForbidden, fmt.Errorf("%w: %s", shared.ErrPermissionDenied, token))
	return false
}

func (h *APIHandler) emit(resource models.Resource, action, id string) {
	name := eventNames[resource][action]
	if h.log != nil {
		if err := h.log.Append(name, string(resource), id); err != nil {
			h.logger.Warn("failed to record event", "event", name, "error", err)
		}
	}
	if err := h.bus.Emit(name, map[string]string{"id": id, "resource": string(resource)}); err != nil {
		h.logger.Warn("failed to publish event", "event", name, "error", err)
	}
}

func (h *APIHandler) fail(w http.ResponseWriter, op string, resource models.Resource, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "op", op, "resource", resource, "error", err)
	}
	writeError(w, status, err)
}

func decodePayload(r *http.Request) (map[string]any, error) {
	payload := map[string]any{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: malformed JSON body: %v", shared.ErrInvalidArgument, err)
	}
	return payload, nil
}
