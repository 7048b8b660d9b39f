// Package client is the engine's client-side reconciliation layer: a REST
// client, a realtime subscriber, and an in-memory mirror of one project's
// graph that all three input streams (optimistic local edits, broadcast
// events, delta-sync responses) merge into by idempotent upsert.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Project mirrors the server's project entity.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Node mirrors the server's node entity.
type Node struct {
	ID          string  `json:"id"`
	Label       string  `json:"label"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	UpdatedAt   int64   `json:"updated_at"`
}

// Edge mirrors the server's edge wire shape.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// GraphData is a full or partial graph payload.
type GraphData struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Changes is a delta-sync response. Timestamp is the watermark for the
// next poll.
type Changes struct {
	Timestamp int64  `json:"timestamp"`
	Nodes     []Node `json:"nodes"`
	Edges     []Edge `json:"edges"`
}

// ProjectInfo is a listed project with its live client count.
type ProjectInfo struct {
	Project
	Clients int `json:"clients"`
}

// DeleteNodeResult reports rows removed by a node deletion.
type DeleteNodeResult struct {
	NodesDeleted int64 `json:"nodesDeleted"`
	EdgesDeleted int64 `json:"edgesDeleted"`
}

// ImportResult reports rows written by a bulk import.
type ImportResult struct {
	NodeCount int `json:"nodeCount"`
	EdgeCount int `json:"edgeCount"`
}

// APIError is a server-reported failure with its stable code.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
}

// Client is the REST half of the reconciliation layer. Every request is
// bounded by the underlying http.Client timeout plus the caller's
// context, and authorized with the session token when one is set.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a Client for a server base URL, e.g. "http://localhost:8080".
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// SetToken installs the session token used for authorized calls.
func (c *Client) SetToken(token string) { c.token = token }

// Token returns the current session token.
func (c *Client) Token() string { return c.token }

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/api/v1"+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		// Middleware such as the rate limiter replies with plain text
		// instead of the envelope; keep the status instead of a decode
		// error.
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return &APIError{
				Code:    "unknown",
				Message: http.StatusText(resp.StatusCode),
				Status:  resp.StatusCode,
			}
		}
		return fmt.Errorf("decode response: %w", err)
	}
	if !env.Success {
		apiErr := env.Error
		if apiErr == nil {
			apiErr = &APIError{Code: "unknown", Message: http.StatusText(resp.StatusCode)}
		}
		apiErr.Status = resp.StatusCode
		return apiErr
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}

type projectWithToken struct {
	Project *Project `json:"project"`
	Token   string   `json:"token"`
}

// CreateProject creates a project and installs its initial session token.
func (c *Client) CreateProject(ctx context.Context, name, description string) (*Project, error) {
	var out projectWithToken
	err := c.do(ctx, http.MethodPost, "/projects", map[string]string{"name": name, "description": description}, &out)
	if err != nil {
		return nil, err
	}
	c.token = out.Token
	return out.Project, nil
}

// JoinProject mints a session token for an existing project and installs it.
func (c *Client) JoinProject(ctx context.Context, projectID string) (*Project, error) {
	var out projectWithToken
	err := c.do(ctx, http.MethodPost, "/projects/"+projectID+"/join", nil, &out)
	if err != nil {
		return nil, err
	}
	c.token = out.Token
	return out.Project, nil
}

// CurrentProject resolves the installed token.
func (c *Client) CurrentProject(ctx context.Context) (*Project, error) {
	var out Project
	if err := c.do(ctx, http.MethodGet, "/projects/current", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListProjects lists all projects with live client counts.
func (c *Client) ListProjects(ctx context.Context) ([]ProjectInfo, error) {
	var out []ProjectInfo
	if err := c.do(ctx, http.MethodGet, "/projects", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteProject cascade-deletes the project the token resolves to.
func (c *Client) DeleteProject(ctx context.Context, projectID string) error {
	return c.do(ctx, http.MethodDelete, "/projects/"+projectID, nil, nil)
}

// Graph fetches the full snapshot.
func (c *Client) Graph(ctx context.Context) (*GraphData, error) {
	var out GraphData
	if err := c.do(ctx, http.MethodGet, "/graph", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveNode upserts one node.
func (c *Client) SaveNode(ctx context.Context, n *Node) error {
	return c.do(ctx, http.MethodPost, "/nodes", n, n)
}

// DeleteNode removes one node and its referencing edges.
func (c *Client) DeleteNode(ctx context.Context, id string) (*DeleteNodeResult, error) {
	var out DeleteNodeResult
	if err := c.do(ctx, http.MethodDelete, "/nodes/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveEdge upserts one edge.
func (c *Client) SaveEdge(ctx context.Context, e *Edge) error {
	return c.do(ctx, http.MethodPost, "/edges", e, e)
}

// DeleteEdge removes one edge.
func (c *Client) DeleteEdge(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/edges/"+id, nil, nil)
}

// ChangesSince fetches the delta past the given watermark.
func (c *Client) ChangesSince(ctx context.Context, since int64) (*Changes, error) {
	var out Changes
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/changes/%d", since), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SyncTimestamp fetches the current project watermark.
func (c *Client) SyncTimestamp(ctx context.Context) (int64, error) {
	var out struct {
		Timestamp int64 `json:"timestamp"`
	}
	if err := c.do(ctx, http.MethodGet, "/sync/timestamp", nil, &out); err != nil {
		return 0, err
	}
	return out.Timestamp, nil
}

// Import replaces the whole project graph.
func (c *Client) Import(ctx context.Context, data *GraphData) (*ImportResult, error) {
	if data.Nodes == nil {
		data.Nodes = []Node{}
	}
	if data.Edges == nil {
		data.Edges = []Edge{}
	}
	var out ImportResult
	if err := c.do(ctx, http.MethodPost, "/import", data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Clear wipes the project graph.
func (c *Client) Clear(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/clear", nil, nil)
}
