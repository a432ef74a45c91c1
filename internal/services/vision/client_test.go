package vision

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"optic/internal/retry"
	"optic/internal/services"
)

func completionBody(content string) string {
	payload := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}, "finish_reason": "stop"},
		},
		"usage": map[string]int{"prompt_tokens": 100, "completion_tokens": 50, "total_tokens": 150},
	}
	encoded, _ := json.Marshal(payload)
	return string(encoded)
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	cfg := Config{
		BaseURL:   baseURL,
		Model:     "test-model",
		Timeout:   5 * time.Second,
		MaxImages: 4,
		Retry:     retry.Policy{MaxAttempts: 3},
	}
	return NewClient(cfg, WithSleeper(func(context.Context, time.Duration) error { return nil }))
}

func TestAnalyzeSuccess(t *testing.T) {
	var gotRequest chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotRequest)
		_, _ = w.Write([]byte(completionBody(verdictDoc)))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	item := testItem()
	mediaPath := writeMedia(t, "photo.jpg", "jpeg-bytes")

	result, err := client.Analyze(context.Background(), item, []string{mediaPath})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if result.Verdict == nil || !result.Verdict.NicotineDetection.IsDetected() {
		t.Fatal("verdict not decoded")
	}
	if result.Usage.PromptTokens != 100 || result.Usage.CompletionTokens != 50 {
		t.Fatalf("usage lost: %+v", result.Usage)
	}
	if result.Attempts != 1 || result.Retries != 0 {
		t.Fatalf("attempt bookkeeping wrong: %+v", result)
	}

	if gotRequest.Model != "test-model" {
		t.Fatalf("model not sent: %q", gotRequest.Model)
	}
	if len(gotRequest.Messages) != 2 || gotRequest.Messages[0].Role != "system" {
		t.Fatalf("unexpected message shape: %+v", gotRequest.Messages)
	}
	parts, ok := gotRequest.Messages[1].Content.([]any)
	if !ok || len(parts) != 2 {
		t.Fatalf("user message should carry one image part and one text part, got %#v", gotRequest.Messages[1].Content)
	}
	first, _ := parts[0].(map[string]any)
	if first["type"] != "image_url" {
		t.Fatalf("image part must come first, got %v", first["type"])
	}
	imageRef, _ := first["image_url"].(map[string]any)
	if url, _ := imageRef["url"].(string); !strings.HasPrefix(url, "data:image/jpeg;base64,") {
		t.Fatalf("image must be an inline data URL, got %.40s", url)
	}

	counters := client.Counters()
	if counters.Requests != 1 || counters.Successes != 1 || counters.PromptTokens != 100 {
		t.Fatalf("counters wrong: %+v", counters)
	}
}

func TestAnalyzeRetriesTransientThenSucceeds(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(completionBody(verdictDoc)))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	result, err := client.Analyze(context.Background(), testItem(), nil)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if result.Attempts != 3 || result.Retries != 2 {
		t.Fatalf("expected success on 3rd attempt with 2 retries, got %+v", result)
	}
	if got := client.Counters().Retries; got != 2 {
		t.Fatalf("retry counter = %d, want 2", got)
	}
}

func TestAnalyzeExhaustsRetryBudget(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Analyze(context.Background(), testItem(), nil)
	if !errors.Is(err, services.ErrRetryExhausted) {
		t.Fatalf("expected retry exhaustion, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", calls.Load())
	}
}

func TestAnalyzePermanentFailureFailsFast(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Analyze(context.Background(), testItem(), nil)
	if !errors.Is(err, services.ErrPermanentRequest) {
		t.Fatalf("expected permanent failure, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("4xx must not be retried, got %d attempts", calls.Load())
	}
}

func TestAnalyzeDecodeFailureRetainsRaw(t *testing.T) {
	const garbage = "I am sorry, I cannot produce JSON today."
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(completionBody(garbage)))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	result, err := client.Analyze(context.Background(), testItem(), nil)
	if !errors.Is(err, services.ErrResponseDecode) {
		t.Fatalf("expected decode failure, got %v", err)
	}
	if result == nil || result.Raw != garbage {
		t.Fatalf("raw response must be retained for inspection, got %+v", result)
	}
	if calls.Load() != 1 {
		t.Fatalf("decode failure is terminal, must not retry; got %d calls", calls.Load())
	}
	if got := client.Counters().DecodeFailures; got != 1 {
		t.Fatalf("decode failure counter = %d", got)
	}
}

func TestAnalyzeSkipsUnreadableMedia(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		parts, _ := req.Messages[1].Content.([]any)
		// Only the text part should remain.
		if len(parts) != 1 {
			t.Errorf("expected 1 content part, got %d", len(parts))
		}
		_, _ = w.Write([]byte(completionBody(verdictDoc)))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	if _, err := client.Analyze(context.Background(), testItem(), []string{"/does/not/exist.jpg"}); err != nil {
		t.Fatalf("missing media must not fail the item: %v", err)
	}
}

func TestAnalyzeCapsImages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		parts, _ := req.Messages[1].Content.([]any)
		if len(parts) != 5 { // 4 images + text
			t.Errorf("expected 4 image parts plus text, got %d parts", len(parts))
		}
		_, _ = w.Write([]byte(completionBody(verdictDoc)))
	}))
	defer server.Close()

	paths := make([]string, 6)
	for i := range paths {
		paths[i] = writeMedia(t, filepath.Base(t.TempDir())+string(rune('a'+i))+".jpg", "img")
	}

	client := newTestClient(t, server.URL)
	if _, err := client.Analyze(context.Background(), testItem(), paths); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"data": [{"id": "test-model"}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck failed: %v", err)
	}

	down := newTestClient(t, "http://127.0.0.1:1")
	if err := down.HealthCheck(context.Background()); err == nil {
		t.Fatal("unreachable endpoint must fail the health check")
	}
}

func writeMedia(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write media: %v", err)
	}
	return path
}
