// Package client provides a Go client for the quotakv HTTP API.
package client

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

	"github.com/go-logr/logr"
	retryablehttp "github.com/hashicorp/go-retryablehttp"
	"github.com/heysubinoy/quotakv/pkg/kv"
)

// DefaultURL is the endpoint used when none is configured.
const DefaultURL = "http://localhost:8080/entries"

type (
	// Client talks to a single quotakv resource endpoint.
	Client struct {
		endpoint *url.URL
		http     *retryablehttp.Client
	}

	// Config provides configuration details to the API client.
	Config struct {
		// URL of the resource endpoint, e.g. http://localhost:8080/entries.
		URL string
		// Toggle retrying requests upon encountering transient errors.
		RetryRequests bool
		// RetryMax caps the number of retries when RetryRequests is set.
		RetryMax int
		// Override default http transport
		Transport http.RoundTripper
		// Logger for logging retry attempts. Defaults to discarding.
		Logger logr.Logger
	}

	// Error is returned for any non-200 response carrying an error payload.
	// It matches the corresponding kv sentinel error under errors.Is.
	Error struct {
		Status  int
		Kind    string
		Message string
		Field   string
	}
)

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%d %s (%s): %s", e.Status, e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Kind, e.Message)
}

func (e *Error) Is(target error) bool {
	sentinel := kv.ErrorForKind(e.Kind)
	return sentinel != nil && target == sentinel
}

func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Transport == nil {
		cfg.Transport = http.DefaultTransport
	}
	if cfg.Logger.GetSink() == nil {
		cfg.Logger = logr.Discard()
	}
	endpoint, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	if endpoint.Scheme != "http" && endpoint.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url: unsupported scheme %q", endpoint.Scheme)
	}
	endpoint.Path = strings.TrimSuffix(endpoint.Path, "/")

	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{Transport: cfg.Transport}
	rc.Logger = leveledLogger{cfg.Logger}
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	if cfg.RetryRequests {
		rc.RetryMax = cfg.RetryMax
		if rc.RetryMax <= 0 {
			rc.RetryMax = 4
		}
	} else {
		// disable retries
		rc.RetryMax = 0
		rc.CheckRetry = func(_ context.Context, _ *http.Response, err error) (bool, error) {
			return false, err
		}
	}
	return &Client{endpoint: endpoint, http: rc}, nil
}

// List returns every entry in the store.
func (c *Client) List(ctx context.Context) ([]kv.Entry, error) {
	var entries []kv.Entry
	if err := c.do(ctx, http.MethodGet, c.endpoint.String(), nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Get returns the entry for key.
func (c *Client) Get(ctx context.Context, key string) (kv.Entry, error) {
	if key == "" {
		return kv.Entry{}, &kv.ValidationError{Field: kv.FieldKey, Reason: "must not be empty"}
	}
	var entry kv.Entry
	if err := c.do(ctx, http.MethodGet, c.entryURL(key), nil, &entry); err != nil {
		return kv.Entry{}, err
	}
	return entry, nil
}

// Create inserts a new entry, failing if the key exists or the store is full.
func (c *Client) Create(ctx context.Context, key, value string) (kv.Entry, error) {
	return c.write(ctx, http.MethodPost, key, value)
}

// Put creates or replaces an entry.
func (c *Client) Put(ctx context.Context, key, value string) (kv.Entry, error) {
	return c.write(ctx, http.MethodPut, key, value)
}

// Delete removes the entry for key.
func (c *Client) Delete(ctx context.Context, key string) error {
	return c.do(ctx, http.MethodDelete, c.endpoint.String(), map[string]string{kv.FieldKey: key}, nil)
}

// Clear deletes every entry currently in the store.
func (c *Client) Clear(ctx context.Context) error {
	_, err := ClearAll(ctx, c)
	return err
}

// ListDeleter is the subset of a store client needed to empty the store.
type ListDeleter interface {
	List(ctx context.Context) ([]kv.Entry, error)
	Delete(ctx context.Context, key string) error
}

// ClearAll deletes every entry listed by c, stopping at the first failure,
// and returns the number deleted.
func ClearAll(ctx context.Context, c ListDeleter) (int, error) {
	entries, err := c.List(ctx)
	if err != nil {
		return 0, err
	}
	for i, e := range entries {
		if err := c.Delete(ctx, e.Key); err != nil {
			return i, fmt.Errorf("deleting %s: %w", e.Key, err)
		}
	}
	return len(entries), nil
}

// entryURL escapes key into a single path segment below the endpoint,
// including any '/' and dot segments it contains.
func (c *Client) entryURL(key string) string {
	u := *c.endpoint
	u.Path = c.endpoint.Path + "/" + key
	u.RawPath = c.endpoint.EscapedPath() + "/" + url.PathEscape(key)
	return u.String()
}

func (c *Client) write(ctx context.Context, method, key, value string) (kv.Entry, error) {
	var entry kv.Entry
	if err := c.do(ctx, method, c.endpoint.String(), kv.Entry{Key: key, Value: value}, &entry); err != nil {
		return kv.Entry{}, err
	}
	return entry, nil
}

func (c *Client) do(ctx context.Context, method, u string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return err
		}
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return &Error{Status: resp.StatusCode, Message: err.Error()}
	}
	var payload struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
		Field string `json:"field"`
	}
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&payload); err != nil || payload.Error == "" {
		return &Error{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}
	return &Error{
		Status:  resp.StatusCode,
		Kind:    payload.Kind,
		Message: payload.Error,
		Field:   payload.Field,
	}
}

// leveledLogger adapts a logr.Logger to retryablehttp.LeveledLogger.
type leveledLogger struct {
	logr.Logger
}

func (l leveledLogger) Error(msg string, keysAndValues ...any) {
	l.Logger.Error(nil, msg, keysAndValues...)
}

func (l leveledLogger) Info(msg string, keysAndValues ...any) {
	l.Logger.Info(msg, keysAndValues...)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...any) {
	l.Logger.V(1).Info(msg, keysAndValues...)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...any) {
	l.Logger.Info(msg, keysAndValues...)
}
