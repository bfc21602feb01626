package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"archmap/internal/analysis"
)

// Client talks to the upstream architecture-analysis service. All methods are
// context-first and return typed errors; none of them panic through callers'
// polling loops.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the underlying transport, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// New creates a client for the given base URL, e.g. "http://localhost:8000".
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("server URL cannot be empty")
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SubmitRequest is the body of POST /api/analyze.
type SubmitRequest struct {
	RepoPath         string `json:"repo_path"`
	GitRef           string `json:"git_ref"`
	GranularityLevel int    `json:"granularity_level,omitempty"`
}

// Submit starts a new analysis and returns the job id to poll.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if strings.TrimSpace(req.RepoPath) == "" {
		return "", fmt.Errorf("repo path cannot be empty")
	}
	if req.GitRef == "" {
		req.GitRef = "main"
	}
	c.logger.Info("submitting analysis", "repo", req.RepoPath, "ref", req.GitRef)

	var job analysis.Job
	if err := c.doJSON(ctx, http.MethodPost, "/api/analyze", req, &job); err != nil {
		return "", err
	}
	if job.ID == "" {
		return "", fmt.Errorf("submit accepted but no job id returned")
	}
	return job.ID, nil
}

// JobStatus fetches the current state of a job.
func (c *Client) JobStatus(ctx context.Context, jobID string) (*analysis.Job, error) {
	var job analysis.Job
	if err := c.doJSON(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(jobID), nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// FetchResult retrieves and validates the analysis result of a completed job.
func (c *Client) FetchResult(ctx context.Context, jobID string) (*analysis.Result, error) {
	body, err := c.doRaw(ctx, http.MethodGet, "/api/results/"+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, err
	}
	res, err := analysis.ParseResult(body)
	if err != nil {
		return nil, fmt.Errorf("results for job %s: %w", jobID, err)
	}
	if res.JobID == "" {
		res.JobID = jobID
	}
	return res, nil
}

// CallFlow fetches the bounded-depth call tree rooted at method.
func (c *Client) CallFlow(ctx context.Context, jobID, method string, maxDepth int) (*analysis.CallFlow, error) {
	if maxDepth <= 0 {
		maxDepth = 5
	}
	path := fmt.Sprintf("/api/results/%s/callflow/%s?max_depth=%d",
		url.PathEscape(jobID), url.PathEscape(method), maxDepth)
	body, err := c.doRaw(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	flow, err := analysis.ParseCallFlow(body)
	if err != nil {
		return nil, fmt.Errorf("call flow for %q: %w", method, err)
	}
	return flow, nil
}

// GitHistory lists branches, tags and recent commits for a repository.
func (c *Client) GitHistory(ctx context.Context, repo string) (*analysis.GitHistory, error) {
	var hist analysis.GitHistory
	path := "/api/git-history?repo=" + url.QueryEscape(repo)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &hist); err != nil {
		return nil, err
	}
	return &hist, nil
}

// UploadResponse is returned by POST /api/upload. The server either extracts
// the archive to a path that can be submitted as a repo, or starts a job
// directly.
type UploadResponse struct {
	Path      string `json:"path,omitempty"`
	JobID     string `json:"job_id,omitempty"`
	FileCount int    `json:"file_count,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Upload sends an archive (zip or tar) as multipart form data.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (*UploadResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("finish upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	body, err := c.send(req)
	if err != nil {
		return nil, err
	}
	var out UploadResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	return &out, nil
}

// ListJobs returns recent jobs, optionally filtered by status.
func (c *Client) ListJobs(ctx context.Context, status analysis.JobStatus, limit int) ([]analysis.Job, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", string(status))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/jobs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out struct {
		Jobs []analysis.Job `json:"jobs"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

// DeleteJob removes a finished job and its cached results server-side.
func (c *Client) DeleteJob(ctx context.Context, jobID string) error {
	_, err := c.doRaw(ctx, http.MethodDelete, "/api/jobs/"+url.PathEscape(jobID), nil)
	return err
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	body, err := c.doRaw(ctx, method, path, in)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) doRaw(ctx context.Context, method, path string, in any) ([]byte, error) {
	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req)
}

func (c *Client) send(req *http.Request) ([]byte, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", req.Method, req.URL.Path, err)
	}

	c.logger.Debug("upstream request",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(resp.StatusCode, body)
	}
	return body, nil
}
