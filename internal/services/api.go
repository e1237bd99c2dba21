// HTTP client for the notes admin API
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/notedesk/internal/listsync"
	"github.com/desertthunder/notedesk/internal/models"
	"github.com/desertthunder/notedesk/internal/shared"
	"golang.org/x/oauth2"
)

const defaultBaseURL = "http://127.0.0.1:3000"

// maxErrorBody bounds how much of an error response is kept in [shared.StatusError].
const maxErrorBody = 512

// AdminAPI provides the list and mutation endpoints of the admin API.
type AdminAPI struct {
	baseURL    string
	httpClient *http.Client
}

// NewAdminAPI creates a client for the admin API at baseURL.
func NewAdminAPI(baseURL string, client *http.Client) *AdminAPI {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &AdminAPI{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

// NewHTTPClient returns a client that sends token as a bearer credential.
//
// An empty token yields a plain client with the same timeout.
func NewHTTPClient(ctx context.Context, token string, timeout time.Duration) *http.Client {
	if token == "" {
		return &http.Client{Timeout: timeout}
	}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
	client.Timeout = timeout
	return client
}

// BaseURL returns the API root.
func (a *AdminAPI) BaseURL() string {
	return a.baseURL
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// Decode unmarshals the body into v.
func (r *APIResponse) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", shared.ErrServer, err)
	}
	return nil
}

// Do performs a request and returns the raw response.
//
// Transport failures wrap [shared.ErrNetwork]; non-2xx responses return a [*shared.StatusError].
func (a *AdminAPI) Do(ctx context.Context, method, path string, query url.Values, body any) (*APIResponse, error) {
	fullURL := a.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to encode request: %v", shared.ErrInvalidArgument, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", shared.ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", shared.ErrNetwork, err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       data,
	}

	var jsonData any
	if err := json.Unmarshal(data, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiResp, &shared.StatusError{Status: resp.StatusCode, Body: errorMessage(apiResp)}
	}
	return apiResp, nil
}

// errorMessage extracts {"error": "..."} from a JSON body, falling back to the raw text.
func errorMessage(r *APIResponse) string {
	if obj, ok := r.JSONData.(map[string]any); ok {
		if msg, ok := obj["error"].(string); ok {
			return msg
		}
	}
	msg := strings.TrimSpace(string(r.Body))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody]
	}
	return msg
}

// Get performs a GET request to path with query parameters.
func (a *AdminAPI) Get(ctx context.Context, path string, query url.Values) (*APIResponse, error) {
	return a.Do(ctx, http.MethodGet, path, query, nil)
}

// Post performs a POST request with body encoded as JSON.
func (a *AdminAPI) Post(ctx context.Context, path string, body any) (*APIResponse, error) {
	return a.Do(ctx, http.MethodPost, path, nil, body)
}

// Patch performs a PATCH request with body encoded as JSON.
func (a *AdminAPI) Patch(ctx context.Context, path string, body any) (*APIResponse, error) {
	return a.Do(ctx, http.MethodPatch, path, nil, body)
}

// Delete performs a DELETE request.
func (a *AdminAPI) Delete(ctx context.Context, path string) (*APIResponse, error) {
	return a.Do(ctx, http.MethodDelete, path, nil, nil)
}

// ResourcePath returns /api/{resource}[/{id}[/{action}]].
func ResourcePath(resource string, parts ...string) string {
	var b strings.Builder
	b.WriteString("/api/")
	b.WriteString(url.PathEscape(resource))
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteByte('/')
		b.WriteString(url.PathEscape(p))
	}
	return b.String()
}

// List fetches one page of a resource.
func (a *AdminAPI) List(ctx context.Context, resource string, query url.Values) (*models.ListResponse, error) {
	resp, err := a.Get(ctx, ResourcePath(resource), query)
	if err != nil {
		return nil, err
	}

	var list models.ListResponse
	if err := resp.Decode(&list); err != nil {
		return nil, err
	}
	return &list, nil
}

// Mutate sends a mutation to the endpoint matching its action.
func (a *AdminAPI) Mutate(ctx context.Context, m listsync.Mutation) error {
	var err error
	switch m.Action {
	case listsync.ActionCreate:
		_, err = a.Post(ctx, ResourcePath(m.Resource), map[string]any(m.Payload))
	case listsync.ActionEdit:
		_, err = a.Patch(ctx, ResourcePath(m.Resource, m.TargetID), map[string]any(m.Payload))
	case listsync.ActionDelete:
		_, err = a.Delete(ctx, ResourcePath(m.Resource, m.TargetID))
	default:
		var body any
		if len(m.Payload) > 0 {
			body = map[string]any(m.Payload)
		}
		_, err = a.Post(ctx, ResourcePath(m.Resource, m.TargetID, string(m.Action)), body)
	}
	return err
}

// Health checks that the API answers.
func (a *AdminAPI) Health(ctx context.Context) error {
	_, err := a.Get(ctx, "/health", nil)
	return err
}
