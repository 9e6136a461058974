// ABOUTME: REST client for the social backend: JSON over HTTP with bearer auth.
// ABOUTME: A rejected credential is cleared locally before the error is returned.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 15 * time.Second

var ErrUnauthorized = errors.New("unauthorized")

// CredentialStore supplies the bearer token and forgets it when the server
// rejects it. client.State and client.MemoryState implement it.
type CredentialStore interface {
	Token() (string, bool)
	ClearCredentials() error
}

// Error is a non-2xx response
type Error struct {
	Status  int
	Message string
	Err     error // ErrUnauthorized for rejected credentials
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Status > 0 {
		return fmt.Sprintf("http %d: %s", e.Status, msg)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Client talks to the REST API
type Client struct {
	baseURL string
	http    *http.Client
	creds   CredentialStore
	logger  *log.Logger
}

// New creates a client for baseURL (e.g. https://host/api)
func New(baseURL string, creds CredentialStore, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return NewWithClient(baseURL, &http.Client{Timeout: timeout}, creds)
}

// NewWithClient uses a caller-provided http.Client
func NewWithClient(baseURL string, httpClient *http.Client, creds CredentialStore) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		creds:   creds,
	}
}

// SetLogger sets a logger for request tracing
func (c *Client) SetLogger(logger *log.Logger) {
	c.logger = logger
}

func (c *Client) logf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}

type requestOptions struct {
	// public requests carry no bearer token and a 401 is a plain failure
	public bool
}

// do performs one request. out may be nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any, opts requestOptions) error {
	var reqBody io.Reader
	if body != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reqBody = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if !opts.public && c.creds != nil {
		if token, ok := c.creds.Token(); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	c.logf("→ %s %s", method, path)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	c.logf("← %d %s %s (%d bytes)", resp.StatusCode, method, path, len(payload))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.responseError(resp.StatusCode, payload, opts)
	}

	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// responseError builds an *Error and clears the local credential when the
// server says it is no longer valid
func (c *Client) responseError(status int, payload []byte, opts requestOptions) error {
	apiErr := &Error{Status: status, Message: errorMessage(payload)}

	rejected := status == http.StatusUnauthorized ||
		status == http.StatusForbidden ||
		strings.Contains(strings.ToLower(apiErr.Message), "token expired")
	if !rejected || opts.public {
		return apiErr
	}

	apiErr.Err = ErrUnauthorized
	if c.creds != nil {
		if err := c.creds.ClearCredentials(); err != nil {
			c.logf("Failed to clear rejected credential: %v", err)
		}
	}
	return apiErr
}

// errorMessage extracts {"message": ...} or {"error": ...} from a body
func errorMessage(payload []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(payload, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return strings.TrimSpace(string(payload))
}

func escape(segment string) string {
	return url.PathEscape(segment)
}
