package freepik

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snaptastic/snaptastic/internal/config"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	cfg := config.Config{
		FreepikAPIKey:  "test-key",
		FreepikBaseURL: baseURL,
		RequestTimeout: 5 * time.Second,
	}
	return NewClient(cfg, nil)
}

func taskJSON(taskID, status string, generated []string) map[string]any {
	return map[string]any{
		"data": map[string]any{
			"task_id":   taskID,
			"status":    status,
			"generated": generated,
		},
	}
}

func TestSubmitRestore(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/ai/gemini-2-5-flash-image-preview", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("x-freepik-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(taskJSON("task-123", StateCreated, nil))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	task, err := client.SubmitRestore(context.Background(), "https://cdn.example/photo.jpg")
	require.NoError(t, err)
	assert.Equal(t, "task-123", task.ID)

	refs, ok := gotBody["reference_images"].([]any)
	require.True(t, ok)
	assert.Equal(t, []any{"https://cdn.example/photo.jpg"}, refs)
	assert.NotEmpty(t, gotBody["prompt"])
}

func TestSubmitUpscaleSendsFixedSettings(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/ai/image-upscaler-precision-v2", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(taskJSON("task-456", StateCreated, nil))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	task, err := client.SubmitUpscale(context.Background(), "https://cdn.example/photo.jpg")
	require.NoError(t, err)
	assert.Equal(t, "task-456", task.ID)

	assert.Equal(t, "https://cdn.example/photo.jpg", gotBody["image"])
	assert.Equal(t, float64(2), gotBody["scale_factor"])
	assert.Equal(t, "photo", gotBody["flavor"])
	assert.Equal(t, float64(10), gotBody["sharpen"])
}

func TestSubmitWithoutAPIKey(t *testing.T) {
	client := NewClient(config.Config{FreepikBaseURL: "https://api.example"}, nil)
	_, err := client.SubmitRestore(context.Background(), "https://cdn.example/photo.jpg")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestSubmitSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.SubmitRestore(context.Background(), "https://cdn.example/photo.jpg")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "upstream exploded")
}

func TestWaitForCompletion(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_ = json.NewEncoder(w).Encode(taskJSON("task-1", StateCreated, nil))
			return
		}
		require.Equal(t, "/v1/ai/gemini-2-5-flash-image-preview/task-1", r.URL.Path)
		if polls.Add(1) < 3 {
			_ = json.NewEncoder(w).Encode(taskJSON("task-1", StateProcessing, nil))
			return
		}
		_ = json.NewEncoder(w).Encode(taskJSON("task-1", StateCompleted, []string{"https://cdn.example/out.png"}))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	task, err := client.SubmitRestore(context.Background(), "https://cdn.example/in.png")
	require.NoError(t, err)

	urls, err := client.WaitForCompletion(context.Background(), task, 10, time.Millisecond)
	require.NoError(t, err)
	require.Len(t, urls, 1)
	assert.Equal(t, "https://cdn.example/out.png", urls[0])
	assert.Equal(t, int32(3), polls.Load())
}

func TestWaitForCompletionTaskFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(taskJSON("task-1", StateFailed, nil))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.WaitForCompletion(context.Background(), &Task{ID: "task-1", endpoint: restoreEndpoint}, 10, time.Millisecond)
	assert.ErrorIs(t, err, ErrTaskFailed)
}

func TestWaitForCompletionTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(taskJSON("task-1", StateProcessing, nil))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.WaitForCompletion(context.Background(), &Task{ID: "task-1", endpoint: restoreEndpoint}, 3, time.Millisecond)
	assert.ErrorIs(t, err, ErrTaskTimeout)
}

func TestWaitForCompletionHonorsContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(taskJSON("task-1", StateProcessing, nil))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := newTestClient(t, srv.URL)
	_, err := client.WaitForCompletion(ctx, &Task{ID: "task-1", endpoint: restoreEndpoint}, 1000, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWaitForCompletionCompletedWithoutResultsKeepsPolling(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) == 1 {
			_ = json.NewEncoder(w).Encode(taskJSON("task-1", StateCompleted, nil))
			return
		}
		_ = json.NewEncoder(w).Encode(taskJSON("task-1", StateCompleted, []string{"https://cdn.example/out.png"}))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	urls, err := client.WaitForCompletion(context.Background(), &Task{ID: "task-1", endpoint: restoreEndpoint}, 5, time.Millisecond)
	require.NoError(t, err)
	assert.Len(t, urls, 1)
}
