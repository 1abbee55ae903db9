package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/CertX-AI/NirmatAI-WebApp/internal"
)

// Status is the health state reported by the analysis service.
type Status string

const (
	StatusOK Status = "ok"
	StatusKO Status = "ko"
)

// BrokenFile is a document the service failed to ingest, with the reason.
type BrokenFile struct {
	Path   string
	Reason string
}

// HTTPDoer describes the HTTP client used to reach the analysis service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the NirmatAI analysis service. The service itself is an
// opaque collaborator: the portal only depends on its HTTP surface.
type Client struct {
	baseURL string
	client  HTTPDoer

	mu     sync.Mutex
	broken []BrokenFile
}

// NewClient constructs a client for the service at baseURL. The timeout
// bounds every individual call, processing included.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return NewClientWithDoer(baseURL, &http.Client{Timeout: timeout})
}

// NewClientWithDoer constructs a client with a caller-supplied HTTP doer.
func NewClientWithDoer(baseURL string, doer HTTPDoer) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  doer,
	}
}

type healthResponse struct {
	Status Status `json:"status"`
}

// HealthCheck reports whether the analysis service is able to accept work.
func (c *Client) HealthCheck(ctx context.Context) (Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return StatusKO, fmt.Errorf("build health request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return StatusKO, fmt.Errorf("health check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return StatusKO, nil
	}

	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return StatusKO, fmt.Errorf("decode health response: %w", err)
	}
	return health.Status, nil
}

// Ingest uploads every regular file in dir to the service. Per-file failures
// do not abort the run: they are collected and exposed through BrokenFiles,
// matching how the portal reports partially ingested submissions.
func (c *Client) Ingest(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read documents dir: %w", err)
	}

	c.mu.Lock()
	c.broken = nil
	c.mu.Unlock()

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := c.ingestFile(ctx, path); err != nil {
			internal.GetLogger().Printf("Failed to ingest %s, err: %v", path, err)
			c.mu.Lock()
			c.broken = append(c.broken, BrokenFile{Path: path, Reason: err.Error()})
			c.mu.Unlock()
		}
	}
	return nil
}

// BrokenFiles returns the documents the last Ingest failed to upload.
func (c *Client) BrokenFiles() []BrokenFile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]BrokenFile(nil), c.broken...)
}

func (c *Client) ingestFile(ctx context.Context, path string) error {
	resp, err := c.postFile(ctx, "/v1/ingest/file", path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// LoadRequirements uploads the requirements spreadsheet the service will
// process against the ingested documents.
func (c *Client) LoadRequirements(ctx context.Context, path string) error {
	resp, err := c.postFile(ctx, "/v1/requirements", path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

type processResponse struct {
	Results []Result `json:"results"`
}

// ProcessRequirements runs the compliance analysis and returns one result
// row per requirement. The lock's validity window must cover this call: it
// dominates the ingest-process-save cycle.
func (c *Client) ProcessRequirements(ctx context.Context) ([]Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/process", nil)
	if err != nil {
		return nil, fmt.Errorf("build process request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("process requirements: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var process processResponse
	if err := json.NewDecoder(resp.Body).Decode(&process); err != nil {
		return nil, fmt.Errorf("decode process response: %w", err)
	}
	return process.Results, nil
}

type processLogsResponse struct {
	Logs []ProcessLog `json:"logs"`
}

// ProcessLogs returns the structured per-requirement log of the last
// processing run.
func (c *Client) ProcessLogs(ctx context.Context) ([]ProcessLog, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/process/logs", nil)
	if err != nil {
		return nil, fmt.Errorf("build process logs request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch process logs: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var logs processLogsResponse
	if err := json.NewDecoder(resp.Body).Decode(&logs); err != nil {
		return nil, fmt.Errorf("decode process logs: %w", err)
	}
	return logs.Logs, nil
}

type ingestedDoc struct {
	DocID string `json:"doc_id"`
}

type ingestListResponse struct {
	Data []ingestedDoc `json:"data"`
}

// DeleteAllDocuments removes every ingested document from the service, so
// one submission's documents never leak into the next session.
func (c *Client) DeleteAllDocuments(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/ingest/list", nil)
	if err != nil {
		return fmt.Errorf("build ingest list request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("list ingested documents: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}

	var list ingestListResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return fmt.Errorf("decode ingest list: %w", err)
	}

	for _, doc := range list.Data {
		if err := c.deleteDocument(ctx, doc.DocID); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) deleteDocument(ctx context.Context, docID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/v1/ingest/"+docID, nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", docID, err)
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

func (c *Client) postFile(ctx context.Context, endpoint, path string) (*http.Response, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", filepath.Base(path), err)
	}
	return resp, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("analysis service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
}
