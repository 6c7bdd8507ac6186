// Package anki delivers flashcards to Anki through the AnkiConnect add-on.
package anki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

const apiVersion = 6

// Error is an AnkiConnect call that failed at the HTTP or application level.
type Error struct {
	Action  string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("ankiconnect %s: %s", e.Action, e.Message)
}

type envelope struct {
	Action  string `json:"action"`
	Version int    `json:"version"`
	Params  any    `json:"params,omitempty"`
}

type reply struct {
	Result json.RawMessage `json:"result"`
	Error  *string         `json:"error"`
}

// Client is a minimal AnkiConnect client. Calls are never retried: a retried
// addNotes could insert the same notes twice.
type Client struct {
	url  string
	http *http.Client
	log  *logrus.Entry
}

func NewClient(url string, timeout time.Duration, log *logrus.Entry) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		url:  url,
		http: &http.Client{Timeout: timeout},
		log:  log.WithField("component", "ankiconnect"),
	}
}

// Invoke performs one action and decodes its result into out (when non-nil).
func (c *Client) Invoke(ctx context.Context, action string, params, out any) error {
	body, err := json.Marshal(envelope{Action: action, Version: apiVersion, Params: params})
	if err != nil {
		return &Error{Action: action, Message: err.Error()}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return &Error{Action: action, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Action: action, Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return &Error{Action: action, Message: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{Action: action, Message: fmt.Sprintf("status %d: %s", resp.StatusCode, truncate(data, 200))}
	}

	var r reply
	if err := json.Unmarshal(data, &r); err != nil {
		return &Error{Action: action, Message: fmt.Sprintf("decode response: %v: %s", err, truncate(data, 200))}
	}
	if r.Error != nil && *r.Error != "" {
		return &Error{Action: action, Message: *r.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(r.Result, out); err != nil {
		return &Error{Action: action, Message: fmt.Sprintf("decode result: %v", err)}
	}
	return nil
}

// Version is used as the reachability probe.
func (c *Client) Version(ctx context.Context) (int, error) {
	var v int
	err := c.Invoke(ctx, "version", nil, &v)
	return v, err
}

func (c *Client) CreateDeck(ctx context.Context, deck string) error {
	return c.Invoke(ctx, "createDeck", map[string]string{"deck": deck}, nil)
}

func (c *Client) ModelNames(ctx context.Context) ([]string, error) {
	var names []string
	err := c.Invoke(ctx, "modelNames", nil, &names)
	return names, err
}

func (c *Client) ModelFieldNames(ctx context.Context, model string) ([]string, error) {
	var names []string
	err := c.Invoke(ctx, "modelFieldNames", map[string]string{"modelName": model}, &names)
	return names, err
}

// AddNotes returns one raw result per note: a note id, or null when the note
// was rejected.
func (c *Client) AddNotes(ctx context.Context, notes []Note) ([]json.RawMessage, error) {
	var results []json.RawMessage
	err := c.Invoke(ctx, "addNotes", map[string]any{"notes": notes}, &results)
	return results, err
}

func (c *Client) CanAddNotes(ctx context.Context, notes []Note) ([]bool, error) {
	var results []bool
	err := c.Invoke(ctx, "canAddNotes", map[string]any{"notes": notes}, &results)
	return results, err
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
