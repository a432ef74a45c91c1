package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"optic/internal/logging"
	"optic/internal/post"
	"optic/internal/retry"
	"optic/internal/services"
	"optic/internal/textutil"
)

const defaultTimeout = 120 * time.Second

// Config captures the runtime settings for the vision endpoint.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
	MaxImages   int
	Budget      PromptBudget
	Retry       retry.Policy
}

// Usage reports token consumption for one request.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Result is one successful-or-decodable analysis outcome. On a decode
// failure the client still returns a Result carrying the raw response text so
// the caller can retain it as evidence, alongside the decode error.
type Result struct {
	Verdict  *Verdict
	Raw      string
	Usage    Usage
	Attempts int
	Retries  int
}

// Counters aggregates client activity across a run.
type Counters struct {
	Requests          int64
	Successes         int64
	TransientFailures int64
	PermanentFailures int64
	DecodeFailures    int64
	Retries           int64
	PromptTokens      int64
	CompletionTokens  int64
}

// Client wraps the OpenAI-compatible chat-completions endpoint LM Studio
// serves. Safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	policy     retry.Policy
	logger     *slog.Logger
	sleep      func(context.Context, time.Duration) error

	mu       sync.Mutex
	counters Counters
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logging.NewComponentLogger(logger, "vision")
		}
	}
}

// WithSleeper overrides how retry waits happen (tests pass a no-op).
func WithSleeper(sleeper func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		if sleeper != nil {
			c.sleep = sleeper
		}
	}
}

// NewClient constructs a vision client from the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxImages <= 0 {
		cfg.MaxImages = 4
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2000
	}
	policy := cfg.Retry
	if policy.MaxAttempts < 1 {
		policy = retry.Default()
	}

	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		policy:     policy,
		logger:     logging.NewNop(),
		sleep:      retry.Sleep,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Counters returns a snapshot of the cumulative client counters.
func (c *Client) Counters() Counters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters
}

// Analyze sends one post with its cached media through the endpoint and
// decodes the structured verdict. Transient transport failures are retried
// within the policy budget; an undecodable response is terminal and comes
// back as a Result holding the raw text plus an ErrResponseDecode-tagged
// error. The call is safely repeatable: it has no side effects beyond the
// request itself.
func (c *Client) Analyze(ctx context.Context, item post.Item, mediaPaths []string) (*Result, error) {
	c.bump(func(cnt *Counters) { cnt.Requests++ })

	images := c.encodeImages(item.ID, mediaPaths)
	payload := c.buildPayload(item, images)

	attempts := c.policy.Attempts()
	retries := 0
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		content, usage, err := c.sendOnce(ctx, payload)
		if err == nil {
			c.bump(func(cnt *Counters) {
				cnt.PromptTokens += int64(usage.PromptTokens)
				cnt.CompletionTokens += int64(usage.CompletionTokens)
			})
			verdict, decodeErr := DecodeVerdict(content)
			if decodeErr != nil {
				c.bump(func(cnt *Counters) { cnt.DecodeFailures++ })
				c.logger.Warn("verdict decode failed",
					logging.String(logging.FieldItemID, item.ID),
					logging.String("snippet", textutil.Snippet(content, 160)))
				return &Result{Raw: content, Usage: usage, Attempts: attempt, Retries: retries}, decodeErr
			}
			c.bump(func(cnt *Counters) { cnt.Successes++ })
			return &Result{Verdict: verdict, Raw: content, Usage: usage, Attempts: attempt, Retries: retries}, nil
		}
		lastErr = err

		if !services.Retryable(err) {
			c.bump(func(cnt *Counters) { cnt.PermanentFailures++ })
			return nil, err
		}
		if attempt == attempts || ctx.Err() != nil {
			break
		}
		retries++
		c.bump(func(cnt *Counters) { cnt.Retries++ })
		c.logger.Warn("analysis attempt failed, retrying",
			logging.String(logging.FieldItemID, item.ID),
			logging.Int(logging.FieldAttempt, attempt),
			logging.Error(err))
		if err := c.sleep(ctx, c.retryWait(err, attempt)); err != nil {
			lastErr = err
			break
		}
	}

	c.bump(func(cnt *Counters) { cnt.TransientFailures++ })
	return nil, services.Wrap(services.ErrRetryExhausted, "vision", "analyze",
		fmt.Sprintf("failed after %d attempts", attempts), lastErr)
}

// HealthCheck verifies the endpoint is reachable and serving models.
func (c *Client) HealthCheck(ctx context.Context) error {
	endpoint := c.cfg.BaseURL + "/models"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return services.Wrap(services.ErrPermanentRequest, "vision", "health", "build request", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransientNetwork, "vision", "health", "endpoint unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return services.Wrap(services.ErrTransientNetwork, "vision", "health",
			fmt.Sprintf("http %d from %s", resp.StatusCode, endpoint), nil)
	}
	return nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type httpStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, textutil.Snippet(e.Body, 160))
}

func (c *Client) buildPayload(item post.Item, images []string) chatRequest {
	parts := make([]contentPart, 0, len(images)+1)
	for _, image := range images {
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: image}})
	}
	parts = append(parts, contentPart{
		Type: "text",
		Text: BuildUserPrompt(item, len(images), c.cfg.Budget),
	})

	return chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt()},
			{Role: "user", Content: parts},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}
}

// encodeImages turns cached media files into inline data URLs, capped at the
// configured count. A file that cannot be read is skipped with a warning
// rather than failing the item; the model still gets the text context.
func (c *Client) encodeImages(itemID string, mediaPaths []string) []string {
	images := make([]string, 0, c.cfg.MaxImages)
	for _, path := range mediaPaths {
		if len(images) >= c.cfg.MaxImages {
			break
		}
		data, err := os.ReadFile(path)
		if err != nil || len(data) == 0 {
			c.logger.Warn("skipping unreadable media file",
				logging.String(logging.FieldItemID, itemID),
				logging.String("path", path),
				logging.Error(err))
			continue
		}
		images = append(images, fmt.Sprintf("data:%s;base64,%s",
			mimeForPath(path), base64.StdEncoding.EncodeToString(data)))
	}
	return images
}

func mimeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "image/jpeg"
	}
}

func (c *Client) sendOnce(ctx context.Context, payload chatRequest) (string, Usage, error) {
	var usage Usage
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", usage, services.Wrap(services.ErrPermanentRequest, "vision", "analyze", "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(encoded))
	if err != nil {
		return "", usage, services.Wrap(services.ErrPermanentRequest, "vision", "analyze", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", usage, classifyTransport(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", usage, classifyTransport(err)
	}
	if resp.StatusCode != http.StatusOK {
		statusErr := &httpStatusError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
		marker := services.ErrPermanentRequest
		if retryableStatus(resp.StatusCode) {
			marker = services.ErrTransientNetwork
		}
		return "", usage, services.Wrap(marker, "vision", "analyze", "request rejected", statusErr)
	}

	var completion chatResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", usage, services.Wrap(services.ErrTransientNetwork, "vision", "analyze", "decode response envelope", err)
	}
	if completion.Error != nil {
		return "", usage, services.Wrap(services.ErrTransientNetwork, "vision", "analyze",
			"api error: "+textutil.Snippet(completion.Error.Message, 160), nil)
	}
	if len(completion.Choices) == 0 || strings.TrimSpace(completion.Choices[0].Message.Content) == "" {
		return "", usage, services.Wrap(services.ErrTransientNetwork, "vision", "analyze", "empty completion", nil)
	}
	return completion.Choices[0].Message.Content, completion.Usage, nil
}

func (c *Client) authorize(req *http.Request) {
	// LM Studio ignores the key, but hosted OpenAI-compatible endpoints need
	// it, so send it whenever configured.
	if key := strings.TrimSpace(c.cfg.APIKey); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
}

// retryWait picks the backoff before the next attempt, honoring a server
// Retry-After when one was supplied.
func (c *Client) retryWait(err error, attempt int) time.Duration {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) && statusErr.RetryAfter > 0 {
		return c.policy.Cap(statusErr.RetryAfter)
	}
	return c.policy.Delay(attempt)
}

func (c *Client) bump(fn func(*Counters)) {
	c.mu.Lock()
	fn(&c.counters)
	c.mu.Unlock()
}

func retryableStatus(status int) bool {
	switch {
	case status == http.StatusRequestTimeout,
		status == http.StatusTooManyRequests,
		status >= http.StatusInternalServerError:
		return true
	default:
		return false
	}
}

func classifyTransport(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTransientNetwork, "vision", "analyze", "request aborted", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return services.Wrap(services.ErrTransientNetwork, "vision", "analyze", "timeout", err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return services.Wrap(services.ErrTransientNetwork, "vision", "analyze", "connection failure", err)
	}
	return services.Wrap(services.ErrTransientNetwork, "vision", "analyze", "transport failure", err)
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		if delay := time.Until(when); delay > 0 {
			return delay
		}
	}
	return 0
}
