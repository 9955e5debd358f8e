package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"docbridge/internal/config"
)

const (
	defaultUploadTimeout = 60 * time.Second
	defaultStatusTimeout = 30 * time.Second

	maxResponseBytes = 1 << 20
)

// HTTPDoer describes the HTTP client used by the ingest client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the knowledge ingestion HTTP API.
type Client struct {
	baseURL         string
	apiKey          string
	knowledgeBaseID string
	client          HTTPDoer
	uploadTimeout   time.Duration
	statusTimeout   time.Duration
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client, useful for tests.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.client = doer
		}
	}
}

// NewClient constructs an ingest client from configuration.
func NewClient(cfg *config.Config, opts ...Option) *Client {
	client := &Client{
		baseURL:         strings.TrimRight(strings.TrimSpace(cfg.Ingest.BaseURL), "/"),
		apiKey:          strings.TrimSpace(cfg.Ingest.APIKey),
		knowledgeBaseID: strings.TrimSpace(cfg.Ingest.KnowledgeBaseID),
		client:          http.DefaultClient,
		uploadTimeout:   defaultUploadTimeout,
		statusTimeout:   defaultStatusTimeout,
	}
	if cfg.Ingest.UploadTimeout > 0 {
		client.uploadTimeout = time.Duration(cfg.Ingest.UploadTimeout) * time.Second
	}
	if cfg.Ingest.StatusTimeout > 0 {
		client.statusTimeout = time.Duration(cfg.Ingest.StatusTimeout) * time.Second
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Upload submits the file at path under the given display name and returns
// the knowledge resource the service created for it.
func (c *Client) Upload(ctx context.Context, path, filename string) (*Knowledge, error) {
	if c.knowledgeBaseID == "" {
		return nil, errors.New("upload knowledge: knowledge base id required")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open upload source: %w", err)
	}
	defer func() { _ = file.Close() }()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("read upload source: %w", err)
	}
	if err := writer.WriteField("fileName", filename); err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}
	if err := writer.WriteField("enable_multimodel", "false"); err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/v1/knowledge-bases/%s/knowledge/file",
		c.baseURL, url.PathEscape(c.knowledgeBaseID))

	ctx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyTransport("upload knowledge", err)
	}
	defer func() { _ = resp.Body.Close() }()
	return decodeKnowledge("upload knowledge", resp)
}

// Status fetches the current parse state of a knowledge resource.
func (c *Client) Status(ctx context.Context, knowledgeID string) (*Knowledge, error) {
	knowledgeID = strings.TrimSpace(knowledgeID)
	if knowledgeID == "" {
		return nil, errors.New("check knowledge status: knowledge id required")
	}

	endpoint := fmt.Sprintf("%s/api/v1/knowledge/%s", c.baseURL, url.PathEscape(knowledgeID))

	ctx, cancel := context.WithTimeout(ctx, c.statusTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build status request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyTransport("check knowledge status", err)
	}
	defer func() { _ = resp.Body.Close() }()
	return decodeKnowledge("check knowledge status", resp)
}

// Delete removes a knowledge resource. A 404 counts as already deleted, so
// the call is idempotent. An empty id is a no-op.
func (c *Client) Delete(ctx context.Context, knowledgeID string) error {
	knowledgeID = strings.TrimSpace(knowledgeID)
	if knowledgeID == "" {
		return nil
	}

	endpoint := fmt.Sprintf("%s/api/v1/knowledge/%s", c.baseURL, url.PathEscape(knowledgeID))

	ctx, cancel := context.WithTimeout(ctx, c.statusTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return classifyTransport("delete knowledge", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: delete knowledge: http %d: %s", ErrTransient, resp.StatusCode, summarizeBody(body))
	case resp.StatusCode >= http.StatusBadRequest:
		return fmt.Errorf("%w: delete knowledge: http %d: %s", ErrRemote, resp.StatusCode, summarizeBody(body))
	}
	return nil
}

func decodeKnowledge(op string, resp *http.Response) (*Knowledge, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read response: %w", ErrTransient, op, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, op)
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: %s: http %d: %s", ErrTransient, op, resp.StatusCode, summarizeBody(body))
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, fmt.Errorf("%w: %s: http %d: %s", ErrRemote, op, resp.StatusCode, summarizeBody(body))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %s: decode response: %w", ErrTransient, op, err)
	}
	if !env.ok() {
		return nil, fmt.Errorf("%w: %s: %s", ErrRemote, op, remoteMessage(env.Message))
	}
	if env.Data == nil {
		return nil, fmt.Errorf("%w: %s: response missing data", ErrTransient, op)
	}
	return env.Data, nil
}
