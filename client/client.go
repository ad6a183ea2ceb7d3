// Package client implements the HTTP client for the remote task API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/taskboard/taskboard/task"
)

// TokenProvider supplies the bearer token for outgoing requests.
type TokenProvider interface {
	Token() string
}

// StaticToken is a TokenProvider for a fixed token string.
type StaticToken string

// Token returns the token.
func (s StaticToken) Token() string { return string(s) }

// Client talks to the remote task API. All responses are decoded into
// normalized task records; records without an id are dropped rather than
// surfaced.
type Client struct {
	baseURL string
	tokens  TokenProvider
	httpc   *http.Client
	logger  *slog.Logger
}

// New creates a Client for the given base URL.
func New(baseURL string, tokens TokenProvider, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		httpc:   &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

// SetHTTPClient overrides the underlying HTTP client. Call before use.
func (c *Client) SetHTTPClient(hc *http.Client) { c.httpc = hc }

// listQuery builds the query string for a bulk read. Without view-all the
// search and user criteria never leave the process.
func listQuery(f task.Filter, viewAll bool, withStatus, withSearch bool) url.Values {
	q := url.Values{}
	if withStatus && f.Status != task.StatusAny {
		q.Set("status", string(f.Status))
	}
	if f.Priority != task.PriorityAny {
		q.Set("priority", string(f.Priority))
	}
	if withStatus && f.ExcludeCompleted {
		q.Set("excludeCompleted", "true")
	}
	if !viewAll {
		return q
	}
	if withSearch && strings.TrimSpace(f.SearchText) != "" {
		q.Set("search", strings.TrimSpace(f.SearchText))
	}
	if f.AssignedUserID != "" {
		q.Set("userId", f.AssignedUserID)
	}
	return q
}

// ListTasks fetches the main task list for the given view.
func (c *Client) ListTasks(ctx context.Context, f task.Filter, viewAll bool) ([]task.Task, error) {
	return c.list(ctx, "/tasks", listQuery(f, viewAll, true, true))
}

// ListCompleted fetches the completed-tasks view; the endpoint is always
// restricted to completed status server-side.
func (c *Client) ListCompleted(ctx context.Context, f task.Filter, viewAll bool) ([]task.Task, error) {
	return c.list(ctx, "/tasks/completed", listQuery(f, viewAll, false, false))
}

// ListOnHold fetches the on-hold view.
func (c *Client) ListOnHold(ctx context.Context, f task.Filter, viewAll bool) ([]task.Task, error) {
	return c.list(ctx, "/tasks/hold", listQuery(f, viewAll, false, true))
}

func (c *Client) list(ctx context.Context, path string, q url.Values) ([]task.Task, error) {
	endpoint := path
	if enc := q.Encode(); enc != "" {
		endpoint += "?" + enc
	}
	var tasks []task.Task
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &tasks); err != nil {
		if ae, ok := err.(*AuthError); ok {
			return nil, ae
		}
		return nil, &FetchError{Endpoint: path, Status: statusOf(err), Err: err}
	}
	kept := tasks[:0]
	for _, t := range tasks {
		if t.ID == "" {
			c.logger.Warn("dropping fetched task without id", slog.String("endpoint", path))
			continue
		}
		t.Normalize()
		kept = append(kept, t)
	}
	return kept, nil
}

// CreateTask persists a new task remotely and returns the created record.
func (c *Client) CreateTask(ctx context.Context, p task.CreatePayload) (task.Task, error) {
	var created task.Task
	if err := c.do(ctx, http.MethodPost, "/tasks", p, &created); err != nil {
		if ae, ok := err.(*AuthError); ok {
			return task.Task{}, ae
		}
		return task.Task{}, &MutationError{Op: "create", Status: statusOf(err), Err: err}
	}
	created.Normalize()
	return created, nil
}

// UpdateTask applies a partial update and returns the updated record.
func (c *Client) UpdateTask(ctx context.Context, id string, p task.Patch) (task.Task, error) {
	var updated task.Task
	if err := c.do(ctx, http.MethodPatch, "/tasks/"+url.PathEscape(id), p, &updated); err != nil {
		if ae, ok := err.(*AuthError); ok {
			return task.Task{}, ae
		}
		return task.Task{}, &MutationError{Op: "update", TaskID: id, Status: statusOf(err), Err: err}
	}
	updated.Normalize()
	return updated, nil
}

// DeleteTask removes a task remotely.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(id), nil, nil); err != nil {
		if ae, ok := err.(*AuthError); ok {
			return ae
		}
		return &MutationError{Op: "delete", TaskID: id, Status: statusOf(err), Err: err}
	}
	return nil
}

// ListUsers fetches the user directory for assignee resolution.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.do(ctx, http.MethodGet, "/users", nil, &users); err != nil {
		if ae, ok := err.(*AuthError); ok {
			return nil, ae
		}
		return nil, &FetchError{Endpoint: "/users", Status: statusOf(err), Err: err}
	}
	return users, nil
}

// User is a directory record used by the search predicate.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Username    string `json:"username"`
	Email       string `json:"email"`
}

// httpError carries a non-2xx status through to the typed wrappers.
type httpError struct {
	status int
	body   string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.status, e.body)
}

func statusOf(err error) int {
	if he, ok := err.(*httpError); ok {
		return he.status
	}
	return 0
}

// do performs a JSON request. body and out may be nil. Each request carries
// a unique id so mutations can be traced across the dashboard and server.
func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.tokens.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		b, _ := io.ReadAll(resp.Body)
		return &AuthError{Status: resp.StatusCode, Message: strings.TrimSpace(string(b))}
	}
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		return &httpError{status: resp.StatusCode, body: strings.TrimSpace(string(b))}
	}
	if out != nil && resp.StatusCode != http.StatusNoContent && resp.ContentLength != 0 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
