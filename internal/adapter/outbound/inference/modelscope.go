package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/popgraph/server/internal/model"
	"github.com/popgraph/server/internal/port/outbound"
)

const (
	// DefaultModel is the text-to-image model requested when none is configured.
	DefaultModel = "Tongyi-MAI/Z-Image-Turbo"

	// DefaultMaxResultBytes caps a downloaded image.
	DefaultMaxResultBytes = 32 << 20

	maxErrorBody = 512
)

// ErrResultTooLarge is returned when a result image exceeds the size cap.
var ErrResultTooLarge = errors.New("result image too large")

// StatusError is returned for non-2xx upstream responses.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status code: %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status code: %d: %s", e.Op, e.StatusCode, e.Body)
}

// Config holds ModelScope client configuration.
type Config struct {
	BaseURL        string
	APIKey         string
	Model          string
	MaxResultBytes int64
}

// ModelScopeEngine implements InferenceEnginePort against the ModelScope async image API.
type ModelScopeEngine struct {
	client *http.Client
	config Config
}

// NewModelScopeEngine creates a new ModelScope engine with the given HTTP client.
func NewModelScopeEngine(client *http.Client, cfg Config) *ModelScopeEngine {
	if client == nil {
		client = http.DefaultClient
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxResultBytes <= 0 {
		cfg.MaxResultBytes = DefaultMaxResultBytes
	}
	return &ModelScopeEngine{
		client: client,
		config: cfg,
	}
}

// submitRequest represents an async image generation request.
type submitRequest struct {
	Model    string   `json:"model"`
	Prompt   string   `json:"prompt"`
	Seed     *int64   `json:"seed,omitempty"`
	Size     string   `json:"size,omitempty"`
	Guidance *float64 `json:"guidance,omitempty"`
}

type submitResponse struct {
	TaskID string `json:"task_id"`
}

// taskResponse represents a task status response.
type taskResponse struct {
	TaskStatus   string   `json:"task_status"`
	OutputImages []string `json:"output_images"`
	Message      string   `json:"message,omitempty"`
	Errors       *struct {
		Message string `json:"message"`
	} `json:"errors,omitempty"`
}

// Submit enqueues a generation task and returns its task id.
func (e *ModelScopeEngine) Submit(ctx context.Context, req *model.InferenceRequest) (string, error) {
	payload := &submitRequest{
		Model:    e.config.Model,
		Prompt:   req.Prompt,
		Seed:     req.Seed,
		Guidance: req.GuidanceScale,
	}
	if req.Width > 0 && req.Height > 0 {
		payload.Size = fmt.Sprintf("%dx%d", req.Width, req.Height)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.BaseURL+"/v1/images/generations", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-ModelScope-Async-Mode", "true")
	e.authorize(httpReq)

	var out submitResponse
	if err := e.doJSON(httpReq, "submit", &out); err != nil {
		return "", err
	}
	if out.TaskID == "" {
		return "", fmt.Errorf("submit: response has no task_id")
	}
	return out.TaskID, nil
}

// Status queries the state of a task.
func (e *ModelScopeEngine) Status(ctx context.Context, taskID string) (*model.InferenceStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.BaseURL+"/v1/tasks/"+url.PathEscape(taskID), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("X-ModelScope-Task-Type", "image_generation")
	e.authorize(httpReq)

	var out taskResponse
	if err := e.doJSON(httpReq, "status", &out); err != nil {
		return nil, err
	}

	status := &model.InferenceStatus{
		TaskID:  taskID,
		State:   parseState(out.TaskStatus),
		Message: out.Message,
	}
	if status.Message == "" && out.Errors != nil {
		status.Message = out.Errors.Message
	}
	if len(out.OutputImages) > 0 {
		status.ResultRef = out.OutputImages[0]
	}
	return status, nil
}

// Fetch downloads a result image.
func (e *ModelScopeEngine) Fetch(ctx context.Context, resultRef string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, resultRef, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetch: execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("fetch", resp)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, e.config.MaxResultBytes+1))
	if err != nil {
		return nil, fmt.Errorf("fetch: read response: %w", err)
	}
	if int64(len(data)) > e.config.MaxResultBytes {
		return nil, fmt.Errorf("fetch: %w (limit %d bytes)", ErrResultTooLarge, e.config.MaxResultBytes)
	}
	return data, nil
}

func (e *ModelScopeEngine) authorize(req *http.Request) {
	if e.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.config.APIKey)
	}
}

func (e *ModelScopeEngine) doJSON(req *http.Request, op string, out any) error {
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: execute request: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(op, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: unmarshal response: %w", op, err)
	}
	return nil
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

func parseState(s string) model.InferenceState {
	switch strings.ToUpper(s) {
	case "SUCCEED", "SUCCEEDED", "SUCCESS":
		return model.InferenceStateSucceeded
	case "FAILED", "FAILURE", "CANCELED", "CANCELLED":
		return model.InferenceStateFailed
	case "RUNNING", "PROCESSING":
		return model.InferenceStateRunning
	default:
		return model.InferenceStatePending
	}
}

// Compile-time interface check
var _ outbound.InferenceEnginePort = (*ModelScopeEngine)(nil)
