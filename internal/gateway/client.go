// Package gateway is the only network-facing part of the calendar: it
// reads schedules and task deadlines from the backend and writes custom
// events and the subgroup preference back.
package gateway

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

	"github.com/google/uuid"

	appLog "studycal/internal/log"
	"studycal/internal/model"
	"studycal/internal/schedule"
)

const (
	defaultTimeout = 10 * time.Second
	// maxBody bounds how much of a response is read.
	maxBody = 4 << 20
)

// Client talks to the collaboration backend. It performs no retries; a
// failed call is reported once to the caller.
type Client struct {
	client     *http.Client
	baseURL    string
	normalizer *schedule.Normalizer
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.client.Timeout = d
		}
	}
}

// WithLocation sets the display location used when normalizing
// date-only values.
func WithLocation(loc *time.Location) Option {
	return func(c *Client) { c.normalizer = schedule.NewNormalizer(loc) }
}

// NewClient creates a Client for the backend rooted at baseURL,
// e.g. "http://127.0.0.1:5000".
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		client: &http.Client{
			Timeout: defaultTimeout,
		},
		baseURL:    trimSlash(baseURL),
		normalizer: schedule.NewNormalizer(time.Local),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchSchedule loads the group's events for one subgroup. It fails soft:
// on any error the returned slice is empty (never nil) and the error says
// what went wrong.
func (c *Client) FetchSchedule(ctx context.Context, group string, subgroup int) ([]model.CalendarEvent, error) {
	const op = "fetch schedule"
	if !model.ValidSubgroup(subgroup) {
		subgroup = 1
	}
	q := url.Values{}
	q.Set("subgroup", strconv.Itoa(subgroup))
	path := "/api/schedule/" + url.PathEscape(group) + "?" + q.Encode()

	var payload schedule.Payload
	if err := c.do(ctx, op, http.MethodGet, path, nil, &payload); err != nil {
		return []model.CalendarEvent{}, err
	}

	events := c.normalizer.Normalize(payload)
	appLog.Info("schedule fetched", "group", group, "subgroup", subgroup, "raw", len(payload.Events), "events", len(events))
	return events, nil
}

// FetchTasks loads the viewer's tasks and returns their deadlines as
// read-only events. Like FetchSchedule it fails soft.
func (c *Client) FetchTasks(ctx context.Context) ([]model.CalendarEvent, error) {
	const op = "fetch tasks"
	var tasks []schedule.RawTask
	if err := c.do(ctx, op, http.MethodGet, "/api/tasks", nil, &tasks); err != nil {
		return []model.CalendarEvent{}, err
	}
	return c.normalizer.TaskDeadlines(tasks), nil
}

// SaveEvent creates the event, or updates it when payload.ID is set. The
// backend resolves conflicts; the client does no merging.
func (c *Client) SaveEvent(ctx context.Context, payload model.EventPayload) error {
	op := "create event"
	if payload.IsUpdate() {
		op = "update event"
	}
	return c.do(ctx, op, http.MethodPost, "/api/event", payload, nil)
}

// DeleteEvent removes a custom event by its backend ID.
func (c *Client) DeleteEvent(ctx context.Context, id string) error {
	if id == "" {
		return &Error{Op: "delete event", Kind: KindRejected, Err: errors.New("empty event id")}
	}
	return c.do(ctx, "delete event", http.MethodDelete, "/api/event/"+url.PathEscape(id), nil, nil)
}

type subgroupRequest struct {
	Subgroup int `json:"subgroup"`
}

type subgroupResponse struct {
	Success  bool `json:"success"`
	Subgroup any  `json:"subgroup"`
}

// SetSubgroup persists the viewer's subgroup preference.
func (c *Client) SetSubgroup(ctx context.Context, subgroup int) error {
	const op = "set subgroup"
	if !model.ValidSubgroup(subgroup) {
		return &Error{Op: op, Kind: KindRejected, Err: fmt.Errorf("invalid subgroup %d", subgroup)}
	}
	var resp subgroupResponse
	if err := c.do(ctx, op, http.MethodPost, "/api/user/subgroup", subgroupRequest{Subgroup: subgroup}, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return &Error{Op: op, Kind: KindRejected, Err: errors.New("backend reported success=false")}
	}
	if got := model.ParseSubgroup(resp.Subgroup); got != subgroup {
		appLog.Warn("backend stored a different subgroup", "requested", subgroup, "stored", got)
	}
	return nil
}

// do sends one request and decodes a 2xx JSON body into out (if non-nil).
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	requestID := uuid.NewString()
	fail := func(kind Kind, status int, err error) error {
		gerr := &Error{Op: op, Kind: kind, Status: status, RequestID: requestID, Err: err}
		appLog.Error("gateway call failed", gerr, "op", op, "request_id", requestID)
		return gerr
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fail(KindTransport, 0, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fail(KindTransport, 0, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	appLog.Debug("gateway request", "op", op, "method", method, "path", path, "request_id", requestID)

	resp, err := c.client.Do(req)
	if err != nil {
		return fail(KindTransport, 0, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fail(KindTransport, resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(KindStatus, resp.StatusCode, errors.New(statusMessage(resp.Status, data)))
	}

	if out == nil || (len(bytes.TrimSpace(data)) == 0 && method != http.MethodGet) {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fail(KindDecode, resp.StatusCode, err)
	}
	return nil
}

// statusMessage prefers the backend's {"error": "..."} text over the bare
// status line.
func statusMessage(status string, body []byte) string {
	var e struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &e) == nil {
		if e.Error != "" {
			return e.Error
		}
		if e.Message != "" {
			return e.Message
		}
	}
	return status
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
