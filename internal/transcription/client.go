package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

const (
	defaultBaseURL      = "https://api.replicate.com"
	defaultPollInterval = 2 * time.Second
	defaultMaxWait      = 30 * time.Minute
	maxResponseBytes    = 10 << 20
)

// ErrTimeout is returned when a prediction does not finish within the max wait.
var ErrTimeout = errors.New("prediction did not finish in time")

var errPending = errors.New("prediction pending")

// HTTPError is a non-2xx response from the Replicate API.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("replicate: status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the request is worth retrying.
func (e *HTTPError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// PredictionError is a prediction that reached a terminal state other than succeeded.
type PredictionError struct {
	ID      string
	Status  string
	Message string
}

func (e *PredictionError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("prediction %s %s", e.ID, e.Status)
	}
	return fmt.Sprintf("prediction %s %s: %s", e.ID, e.Status, e.Message)
}

// File is an uploaded input file.
type File struct {
	ID   string `json:"id"`
	URLs struct {
		Get string `json:"get"`
	} `json:"urls"`
}

// Prediction is the subset of the prediction resource the pipeline reads.
type Prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  json.RawMessage `json:"error"`
}

func (p Prediction) terminal() bool {
	switch p.Status {
	case "succeeded", "failed", "canceled":
		return true
	}
	return false
}

func (p Prediction) errorText() string {
	if len(p.Error) == 0 || string(p.Error) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(p.Error, &s) == nil {
		return s
	}
	return string(p.Error)
}

// Client talks to the Replicate HTTP API.
type Client struct {
	token        string
	baseURL      string
	http         *http.Client
	pollInterval time.Duration
	maxWait      time.Duration
	newBackOff   func() backoff.BackOff
	log          *logrus.Entry
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u = strings.TrimRight(strings.TrimSpace(u), "/"); u != "" {
			c.baseURL = u
		}
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithPolling sets how often a running prediction is checked and for how long.
func WithPolling(interval, maxWait time.Duration) Option {
	return func(c *Client) {
		if interval > 0 {
			c.pollInterval = interval
		}
		if maxWait > 0 {
			c.maxWait = maxWait
		}
	}
}

// WithRetryBackOff replaces the backoff used for transport retries.
func WithRetryBackOff(fn func() backoff.BackOff) Option {
	return func(c *Client) {
		if fn != nil {
			c.newBackOff = fn
		}
	}
}

func NewClient(token string, log *logrus.Entry, opts ...Option) *Client {
	c := &Client{
		token:        token,
		baseURL:      defaultBaseURL,
		http:         &http.Client{Timeout: 5 * time.Minute},
		pollInterval: defaultPollInterval,
		maxWait:      defaultMaxWait,
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.MaxElapsedTime = 30 * time.Second
			return bo
		},
		log: log.WithField("component", "replicate"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UploadFile sends a local file to the files API and returns its handle.
func (c *Client) UploadFile(ctx context.Context, path string) (File, error) {
	var f File
	err := c.do(ctx, func() (*http.Request, error) {
		body, contentType, err := multipartBody(path)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/files", body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	}, &f)
	if err != nil {
		return File{}, fmt.Errorf("upload %s: %w", filepath.Base(path), err)
	}
	if f.ID == "" || f.URLs.Get == "" {
		return File{}, fmt.Errorf("upload %s: response without file url", filepath.Base(path))
	}
	return f, nil
}

// DeleteFile removes an uploaded file.
func (c *Client) DeleteFile(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return c.do(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/v1/files/"+id, nil)
	}, nil)
}

// CreatePrediction starts a prediction. Models pinned as "owner/name:version"
// go through the versioned endpoint, bare "owner/name" through the model one.
func (c *Client) CreatePrediction(ctx context.Context, model string, input map[string]any) (Prediction, error) {
	endpoint := c.baseURL + "/v1/predictions"
	payload := map[string]any{"input": input}
	if name, version, ok := strings.Cut(model, ":"); ok {
		payload["version"] = version
	} else {
		endpoint = c.baseURL + "/v1/models/" + name + "/predictions"
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Prediction{}, fmt.Errorf("encode prediction: %w", err)
	}

	var p Prediction
	err = c.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, &p)
	if err != nil {
		return Prediction{}, fmt.Errorf("create prediction: %w", err)
	}
	return p, nil
}

func (c *Client) GetPrediction(ctx context.Context, id string) (Prediction, error) {
	var p Prediction
	err := c.do(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/predictions/"+id, nil)
	}, &p)
	if err != nil {
		return Prediction{}, fmt.Errorf("get prediction %s: %w", id, err)
	}
	return p, nil
}

// Run creates a prediction and waits for it to finish, returning its raw output.
func (c *Client) Run(ctx context.Context, model string, input map[string]any) (json.RawMessage, error) {
	start := time.Now()
	p, err := c.CreatePrediction(ctx, model, input)
	if err != nil {
		return nil, err
	}
	entry := c.log.WithFields(logrus.Fields{"model": model, "prediction": p.ID})
	entry.Debug("prediction created")

	p, err = c.wait(ctx, p)
	if err != nil {
		return nil, err
	}
	if p.Status != "succeeded" {
		return nil, &PredictionError{ID: p.ID, Status: p.Status, Message: p.errorText()}
	}
	entry.WithField("elapsed", time.Since(start).Round(time.Millisecond).String()).Info("prediction succeeded")
	return p.Output, nil
}

func (c *Client) wait(ctx context.Context, p Prediction) (Prediction, error) {
	if p.terminal() {
		return p, nil
	}
	retries := uint64(c.maxWait / c.pollInterval)
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(c.pollInterval), retries), ctx)

	current := p
	err := backoff.Retry(func() error {
		next, err := c.GetPrediction(ctx, current.ID)
		if err != nil {
			return backoff.Permanent(err)
		}
		current = next
		if !current.terminal() {
			return errPending
		}
		return nil
	}, bo)

	if errors.Is(err, errPending) {
		c.cancel(ctx, current.ID)
		return current, fmt.Errorf("prediction %s still %s after %s: %w", current.ID, current.Status, c.maxWait, ErrTimeout)
	}
	return current, err
}

func (c *Client) cancel(ctx context.Context, id string) {
	err := c.do(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/predictions/"+id+"/cancel", nil)
	}, nil)
	if err != nil {
		c.log.WithError(err).WithField("prediction", id).Warn("failed to cancel prediction")
	}
}

// do retries transport errors and 429/5xx responses. The request is rebuilt on
// every attempt so bodies are never reused.
func (c *Client) do(ctx context.Context, build func() (*http.Request, error), target any) error {
	op := func() error {
		req, err := build()
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return err
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			herr := &HTTPError{StatusCode: resp.StatusCode, Body: snippet(body)}
			if herr.Temporary() {
				c.log.WithField("status", resp.StatusCode).Debug("retrying replicate request")
				return herr
			}
			return backoff.Permanent(herr)
		}
		if target == nil || len(bytes.TrimSpace(body)) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, target); err != nil {
			return backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		return nil
	}
	return backoff.Retry(op, backoff.WithContext(c.newBackOff(), ctx))
}

func multipartBody(path string) (io.Reader, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("content", filepath.Base(path))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 300 {
		return s[:300] + "..."
	}
	return s
}
