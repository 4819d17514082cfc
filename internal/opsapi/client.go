// Package opsapi is a read-only client for the OpsFlux backend REST API.
// It fetches the projects and tasks the planner turns into calendar events.
package opsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	appLog "opsplan/internal/log"
)

// maxBodyBytes caps a single response body.
const maxBodyBytes = 32 << 20

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code   int
	Status string
	URL    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("opsapi: %s returned %s", e.URL, e.Status)
}

// Client talks to the backend. It applies no caching, retries or backoff.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client (tests, custom transports).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

// WithToken sends "Authorization: Bearer <token>" on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// NewClient creates a client rooted at baseURL (e.g. "https://ops/api/v1").
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListProjects returns projects. Archived projects are filtered server-side
// unless includeArchived is set.
func (c *Client) ListProjects(ctx context.Context, includeArchived bool) ([]Project, error) {
	q := url.Values{}
	if !includeArchived {
		q.Set("archived", strconv.FormatBool(false))
	}

	var projects []Project
	if err := c.getList(ctx, "/projects", q, &projects); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// ListTasks returns the tasks of one project.
func (c *Client) ListTasks(ctx context.Context, projectID string) ([]Task, error) {
	if projectID == "" {
		return nil, errors.New("list tasks: empty project id")
	}

	var tasks []Task
	path := "/projects/" + url.PathEscape(projectID) + "/tasks"
	if err := c.getList(ctx, path, nil, &tasks); err != nil {
		return nil, fmt.Errorf("list tasks of project %s: %w", projectID, err)
	}
	for i := range tasks {
		if tasks[i].ProjectID == "" {
			tasks[i].ProjectID = projectID
		}
	}
	return tasks, nil
}

// getList GETs path and decodes either a JSON array or an {"items": [...]}
// envelope into out, which must point to a slice.
func (c *Client) getList(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	appLog.Debug("opsapi request", "path", path)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Status: resp.Status, URL: appLog.RedactURL(u)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	return decodeList(body, out)
}

func decodeList(body []byte, out any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return errors.New("empty response body")
	}
	if trimmed[0] == '[' {
		return json.Unmarshal(trimmed, out)
	}

	var env listEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return err
	}
	if items := bytes.TrimSpace(env.Items); len(items) == 0 || bytes.Equal(items, []byte("null")) {
		return errors.New(`response has no "items" list`)
	}
	return json.Unmarshal(env.Items, out)
}
