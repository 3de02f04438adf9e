package giglinesdk

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
)

// Client is a minimal Gigline HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Party is a marketplace participant. Amounts are decimal strings.
type Party struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Role    string `json:"role"`
	Status  string `json:"status"`
	Wallet  string `json:"wallet"`
	Version int64  `json:"version"`
}

// Task represents the API task model (partial).
type Task struct {
	ID         string  `json:"id"`
	CustomerID string  `json:"customer_id"`
	ExecutorID *string `json:"executor_id,omitempty"`
	Title      string  `json:"title"`
	Price      string  `json:"price"`
	Status     string  `json:"status"`
	Decision   string  `json:"decision,omitempty"`
	Version    int64   `json:"version"`
}

// Contract represents an escrow agreement between a customer and an executor.
type Contract struct {
	ID         string  `json:"id"`
	TaskID     string  `json:"task_id"`
	CustomerID string  `json:"customer_id"`
	ExecutorID string  `json:"executor_id"`
	Amount     string  `json:"amount"`
	Status     string  `json:"status"`
	Version    int64   `json:"version"`
	ClosedAt   *string `json:"closed_at,omitempty"`
}

// Event represents an audit log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityID   string `json:"entity_id"`
	EntityKind string `json:"entity_kind"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d code=%s body=%s", e.StatusCode, e.Code, e.Body)
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// TaskInput describes a new task. Price is a decimal string.
type TaskInput struct {
	Title              string  `json:"title"`
	Description        *string `json:"description,omitempty"`
	Price              string  `json:"price"`
	CompletionDeadline *string `json:"completion_deadline,omitempty"`
}

// Me returns the authenticated party.
func (c *Client) Me(ctx context.Context) (Party, error) {
	var resp Party
	err := c.do(ctx, http.MethodGet, "v0/me", nil, &resp)
	return resp, err
}

// Party fetches a party by id.
func (c *Client) Party(ctx context.Context, id string) (Party, error) {
	var resp Party
	err := c.do(ctx, http.MethodGet, "v0/parties/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// CreateTask registers a task owned by the caller.
func (c *Client) CreateTask(ctx context.Context, in TaskInput) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, "v0/tasks", in, &resp)
	return resp, err
}

// SubmitTask moves an assigned task to ON_CHECK with the executor's decision.
func (c *Client) SubmitTask(ctx context.Context, taskID, decision string) (Task, error) {
	return c.updateTask(ctx, taskID, map[string]any{"status": "ON_CHECK", "decision": decision})
}

// ReviewTask sets a customer review outcome, DONE or ON_FIX.
func (c *Client) ReviewTask(ctx context.Context, taskID, status string) (Task, error) {
	return c.updateTask(ctx, taskID, map[string]any{"status": status})
}

func (c *Client) updateTask(ctx context.Context, taskID string, body map[string]any) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPatch, "v0/tasks/"+url.PathEscape(taskID), body, &resp)
	return resp, err
}

// AcceptTask opens a contract for the calling executor, escrowing the task price.
func (c *Client) AcceptTask(ctx context.Context, taskID, executorID, code string) (Contract, error) {
	body := map[string]any{
		"task_id":                  taskID,
		"executor_id":              executorID,
		"confirmation_code":        code,
		"repeat_confirmation_code": code,
	}
	var resp Contract
	err := c.do(ctx, http.MethodPost, "v0/contracts", body, &resp)
	return resp, err
}

// SettleContract closes a contract as DONE or TERMINATED.
func (c *Client) SettleContract(ctx context.Context, contractID, status string) (Contract, error) {
	var resp Contract
	err := c.do(ctx, http.MethodPatch, "v0/contracts/"+url.PathEscape(contractID), map[string]any{"status": status}, &resp)
	return resp, err
}

// Events returns audit events from the start of the log.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a page of events after cursor.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "v0/events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
