package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/musichub/api/internal/config"
	"github.com/musichub/api/internal/model"
)

// workerSecretHeader carries the shared secret on every worker call.
const workerSecretHeader = "x-worker-secret"

// ErrWorkerJobNotFound means the worker does not know the job id. This is a
// definitive answer from the worker, not an availability problem.
var ErrWorkerJobNotFound = errors.New("worker does not know this job")

// UnavailableError covers transport failures and non-success responses from
// the worker. Callers must treat it as retryable and leave local state alone.
type UnavailableError struct {
	Detail string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("split worker unavailable: %s", e.Detail)
}

// SplitWorker defines the external split-worker protocol.
type SplitWorker interface {
	CreateSplit(ctx context.Context, filename string, file io.Reader) (string, error)
	JobStatus(ctx context.Context, jobID string) (*WorkerJob, error)
}

// WorkerJob is the worker's own view of a job. Status uses the worker's
// vocabulary and must be mapped through model.StatusFromWorker.
type WorkerJob struct {
	Status   string             `json:"status"`
	Progress string             `json:"progress,omitempty"`
	Error    string             `json:"error,omitempty"`
	Result   *model.SplitResult `json:"result,omitempty"`
}

// WorkerClient implements SplitWorker over the worker's HTTP surface.
type WorkerClient struct {
	httpClient *http.Client
	baseURL    string
	secret     string
}

func NewWorkerClient(cfg *config.WorkerConfig) *WorkerClient {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WorkerClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		secret:     cfg.Secret,
	}
}

// CreateSplit uploads the audio file and returns the worker-assigned job id.
func (c *WorkerClient) CreateSplit(ctx context.Context, filename string, file io.Reader) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("failed to write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/split", &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set(workerSecretHeader, c.secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &UnavailableError{Detail: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &UnavailableError{Detail: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &UnavailableError{Detail: fmt.Sprintf("create returned %d: %s", resp.StatusCode, truncate(body, 200))}
	}

	var created struct {
		JobID string `json:"jobId"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return "", &UnavailableError{Detail: fmt.Sprintf("bad create response: %v", err)}
	}
	if created.JobID == "" {
		return "", &UnavailableError{Detail: "worker returned no job id"}
	}
	return created.JobID, nil
}

// JobStatus fetches the worker's current view of a job.
func (c *WorkerClient) JobStatus(ctx context.Context, jobID string) (*WorkerJob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/status/"+jobID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(workerSecretHeader, c.secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &UnavailableError{Detail: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UnavailableError{Detail: err.Error()}
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrWorkerJobNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UnavailableError{Detail: fmt.Sprintf("status returned %d: %s", resp.StatusCode, truncate(body, 200))}
	}

	var view WorkerJob
	if err := json.Unmarshal(body, &view); err != nil {
		return nil, &UnavailableError{Detail: fmt.Sprintf("bad status response: %v", err)}
	}
	return &view, nil
}

func truncate(b []byte, n int) string {
	s := string(b)
	if len(s) > n {
		return s[:n]
	}
	return s
}
