package freepik

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/snaptastic/snaptastic/internal/config"
)

const (
	restoreEndpoint = "/v1/ai/gemini-2-5-flash-image-preview"
	upscaleEndpoint = "/v1/ai/image-upscaler-precision-v2"
)

// restorationPrompt is the fixed prompt used for every restoration task.
const restorationPrompt = `Ultra-realistic recreation of an old vintage photo, keeping the same original face (99% likeness, no alteration). Transform into a modern high-quality digital portrait with vibrant updated colors, smooth realistic skin textures, and natural lighting. The outfit and background should be upgraded into a clean, modern aesthetic while preserving the authenticity of the original pose and expression.`

// Task states as reported by the provider.
const (
	StateCreated    = "CREATED"
	StateProcessing = "PROCESSING"
	StateCompleted  = "COMPLETED"
	StateFailed     = "FAILED"
)

var (
	// ErrMissingAPIKey is returned when no provider credential is configured.
	ErrMissingAPIKey = errors.New("freepik api key is not configured")
	// ErrTaskFailed is returned when the provider reports a FAILED state.
	ErrTaskFailed = errors.New("task failed")
	// ErrTaskTimeout is returned when polling exhausts its attempts.
	ErrTaskTimeout = errors.New("task timed out")
)

// APIError carries a non-success HTTP response from the provider.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("freepik error: status=%d body=%s", e.StatusCode, e.Body)
}

// Task identifies a submitted provider job together with the endpoint it
// must be polled against.
type Task struct {
	ID       string
	endpoint string
}

// Status is a single poll result.
type Status struct {
	TaskID    string
	State     string
	Generated []string
}

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(cfg config.Config, log *slog.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	return &Client{
		apiKey:  cfg.FreepikAPIKey,
		baseURL: strings.TrimRight(cfg.FreepikBaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

// SubmitRestore submits a restoration task for the given source image.
func (c *Client) SubmitRestore(ctx context.Context, imageURL string) (*Task, error) {
	payload := map[string]any{
		"prompt":           restorationPrompt,
		"reference_images": []string{imageURL},
	}
	return c.submit(ctx, restoreEndpoint, payload)
}

// SubmitUpscale submits a 2x upscaling task with the fixed precision
// settings tuned for restored photos.
func (c *Client) SubmitUpscale(ctx context.Context, imageURL string) (*Task, error) {
	payload := map[string]any{
		"image":        imageURL,
		"sharpen":      10,
		"smart_grain":  5,
		"ultra_detail": 40,
		"flavor":       "photo",
		"scale_factor": 2,
	}
	return c.submit(ctx, upscaleEndpoint, payload)
}

func (c *Client) submit(ctx context.Context, endpoint string, payload map[string]any) (*Task, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-freepik-api-key", c.apiKey)

	parsed, err := c.do(req)
	if err != nil {
		return nil, err
	}

	if parsed.Data.TaskID == "" {
		return nil, fmt.Errorf("empty task_id in response")
	}

	if c.log != nil {
		c.log.Info("freepik task created", "task_id", parsed.Data.TaskID, "endpoint", endpoint)
	}

	return &Task{ID: parsed.Data.TaskID, endpoint: endpoint}, nil
}

// CheckStatus performs a single status poll for the task.
func (c *Client) CheckStatus(ctx context.Context, task *Task) (*Status, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	statusURL := c.baseURL + task.endpoint + "/" + url.PathEscape(task.ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("x-freepik-api-key", c.apiKey)

	parsed, err := c.do(req)
	if err != nil {
		return nil, err
	}

	return &Status{
		TaskID:    parsed.Data.TaskID,
		State:     parsed.Data.Status,
		Generated: parsed.Data.Generated,
	}, nil
}

// WaitForCompletion polls the task until it completes, fails, the context
// is cancelled, or maxAttempts polls have been made.
func (c *Client) WaitForCompletion(ctx context.Context, task *Task, maxAttempts int, interval time.Duration) ([]string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		status, err := c.CheckStatus(ctx, task)
		if err != nil {
			return nil, err
		}

		switch status.State {
		case StateCompleted:
			if len(status.Generated) > 0 {
				if c.log != nil {
					c.log.Info("freepik task completed", "task_id", task.ID, "attempt", attempt+1)
				}
				return status.Generated, nil
			}
		case StateFailed:
			if c.log != nil {
				c.log.Error("freepik task failed", "task_id", task.ID)
			}
			return nil, fmt.Errorf("%w: task %s", ErrTaskFailed, task.ID)
		}

		if c.log != nil && attempt > 0 && attempt%10 == 0 {
			c.log.Info("freepik task still pending", "task_id", task.ID, "attempt", attempt+1, "max_attempts", maxAttempts)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}

	return nil, fmt.Errorf("%w: task %s after %d attempts", ErrTaskTimeout, task.ID, maxAttempts)
}

type taskResponse struct {
	Data struct {
		TaskID    string   `json:"task_id"`
		Status    string   `json:"status"`
		Generated []string `json:"generated"`
	} `json:"data"`
}

func (c *Client) do(req *http.Request) (*taskResponse, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("freepik request: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 300 {
		if c.log != nil {
			c.log.Error("freepik request failed", "status", resp.StatusCode, "url", req.URL.String(), "body", truncateBody(rawBody))
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Body: truncateBody(rawBody)}
	}

	var parsed taskResponse
	if err := json.Unmarshal(rawBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w (body=%s)", err, truncateBody(rawBody))
	}
	return &parsed, nil
}

func truncateBody(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
