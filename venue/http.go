package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════════
// HTTP HELPERS
// ═══════════════════════════════════════════════════════════════════════════════

// ClientOption configures a venue client.
type ClientOption func(*httpBase)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(b *httpBase) {
		b.client = client
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(b *httpBase) {
		b.client = &http.Client{Timeout: d, Transport: b.client.Transport}
	}
}

// WithAPIKey sets the API key header value.
func WithAPIKey(key string) ClientOption {
	return func(b *httpBase) {
		b.apiKey = key
	}
}

type httpBase struct {
	name      string
	baseURL   string
	apiKey    string
	apiHeader string
	client    *http.Client
}

func newHTTPBase(name, baseURL, apiHeader string, opts ...ClientOption) httpBase {
	b := httpBase{
		name:      name,
		baseURL:   baseURL,
		apiHeader: apiHeader,
		client:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// errorBody covers the error shapes both venues use.
type errorBody struct {
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
	Response  string `json:"response"`
}

func (e errorBody) text() string {
	for _, s := range []string{e.Error, e.Message, e.ErrorCode, e.Response} {
		if s != "" {
			return s
		}
	}
	return ""
}

func (b *httpBase) get(ctx context.Context, op, path string, out any) error {
	return b.do(ctx, op, http.MethodGet, path, nil, out)
}

func (b *httpBase) post(ctx context.Context, op, path string, body, out any) error {
	return b.do(ctx, op, http.MethodPost, path, body, out)
}

func (b *httpBase) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &Error{Venue: b.name, Op: op, Kind: KindUnavailable, Err: fmt.Errorf("marshal request: %w", err)}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return &Error{Venue: b.name, Op: op, Kind: KindUnavailable, Err: fmt.Errorf("create request: %w", err)}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if b.apiKey != "" && b.apiHeader != "" {
		req.Header.Set(b.apiHeader, b.apiKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return &Error{Venue: b.name, Op: op, Kind: KindUnavailable, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Venue: b.name, Op: op, Kind: KindUnavailable, Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb errorBody
		_ = json.Unmarshal(respBody, &eb)
		msg := eb.text()
		if msg == "" {
			msg = string(respBody)
		}
		return &Error{
			Venue:  b.name,
			Op:     op,
			Kind:   classifyMessage(msg),
			Status: resp.StatusCode,
			Err:    errors.New(msg),
		}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return &Error{Venue: b.name, Op: op, Kind: KindUnavailable, Status: resp.StatusCode, Err: fmt.Errorf("malformed response: %w", err)}
		}
	}
	return nil
}
