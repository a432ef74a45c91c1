package mediacache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"optic/internal/fileutil"
	"optic/internal/logging"
	"optic/internal/post"
	"optic/internal/retry"
	"optic/internal/services"
)

const userAgent = "optic/0.1.0"

// Source records how an entry was satisfied.
type Source string

const (
	// SourceFresh means the bytes were downloaded on this call.
	SourceFresh Source = "fresh"
	// SourceCached means a prior run (or a concurrent caller) already had the
	// file and no network request was made.
	SourceCached Source = "cached"
	// SourceFailed means the fetch exhausted its budget or failed permanently.
	SourceFailed Source = "failed"
)

// Entry is the outcome of one fetch. Failed entries carry the last error text
// as evidence; successful ones point at a non-empty local file.
type Entry struct {
	Ref         post.MediaRef
	Fingerprint string
	Path        string
	Size        int64
	Source      Source
	Attempts    int
	Err         string
}

// OK reports whether the entry points at usable local bytes.
func (e Entry) OK() bool {
	return e.Source == SourceFresh || e.Source == SourceCached
}

// Counters aggregates fetch outcomes across a cache's lifetime.
type Counters struct {
	Fresh   int64
	Cached  int64
	Failed  int64
	Retries int64
	Bytes   int64
}

// Config carries the cache settings the orchestrator wires from the
// application config.
type Config struct {
	Root     string
	Workers  int
	Timeout  time.Duration
	MaxBytes int64
	Retry    retry.Policy
}

// Cache is the concurrent media fetcher. Safe for use from many goroutines.
type Cache struct {
	root     string
	client   *http.Client
	policy   retry.Policy
	maxBytes int64
	sem      chan struct{}
	logger   *slog.Logger
	sleep    func(context.Context, time.Duration) error

	mu       sync.Mutex
	inflight map[string]*flight
	counters Counters
}

type flight struct {
	done  chan struct{}
	entry Entry
}

// Option customizes a Cache.
type Option func(*Cache)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Cache) {
		if client != nil {
			c.client = client
		}
	}
}

// WithLogger attaches a logger; fetch outcomes log at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logging.NewComponentLogger(logger, "mediacache")
		}
	}
}

// WithSleeper overrides how backoff waits are performed (tests pass a no-op).
func WithSleeper(sleeper func(context.Context, time.Duration) error) Option {
	return func(c *Cache) {
		if sleeper != nil {
			c.sleep = sleeper
		}
	}
}

// New builds a cache rooted at cfg.Root, creating the directory. An unusable
// cache root is fatal to the run, so this is the one place the package
// returns an error instead of a failed entry.
func New(cfg Config, opts ...Option) (*Cache, error) {
	if cfg.Root == "" {
		return nil, services.Wrap(services.ErrConfiguration, "mediacache", "new", "cache root not configured", nil)
	}
	if err := fileutil.EnsureDir(cfg.Root); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "mediacache", "new", "cache root unusable", err)
	}

	workers := cfg.Workers
	if workers < 1 {
		workers = 12
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	policy := cfg.Retry
	if policy.MaxAttempts < 1 {
		policy = retry.Default()
	}

	cache := &Cache{
		root:     cfg.Root,
		client:   &http.Client{Timeout: timeout},
		policy:   policy,
		maxBytes: cfg.MaxBytes,
		sem:      make(chan struct{}, workers),
		logger:   logging.NewNop(),
		sleep:    retry.Sleep,
		inflight: make(map[string]*flight),
	}
	for _, opt := range opts {
		opt(cache)
	}
	return cache, nil
}

// Root returns the cache directory.
func (c *Cache) Root() string { return c.root }

// Counters returns a snapshot of the aggregate fetch counters.
func (c *Cache) Counters() Counters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters
}

// Fetch resolves one media reference to a local file. Concurrent calls for
// the same reference collapse onto a single download; everyone gets the same
// entry. Failures come back as a failed entry, never as a panic or error.
func (c *Cache) Fetch(ctx context.Context, ref post.MediaRef) Entry {
	fingerprint := Fingerprint(ref)

	c.mu.Lock()
	if fl, ok := c.inflight[fingerprint]; ok {
		c.mu.Unlock()
		select {
		case <-fl.done:
			return fl.entry
		case <-ctx.Done():
			return c.failedEntry(ref, fingerprint, 0, ctx.Err())
		}
	}
	fl := &flight{done: make(chan struct{})}
	c.inflight[fingerprint] = fl
	c.mu.Unlock()

	entry := c.resolve(ctx, ref, fingerprint)

	c.mu.Lock()
	fl.entry = entry
	delete(c.inflight, fingerprint)
	c.record(entry)
	c.mu.Unlock()
	close(fl.done)

	return entry
}

// FetchAll fans refs across the worker pool and returns entries in ref order.
// One failed reference never cancels its siblings.
func (c *Cache) FetchAll(ctx context.Context, refs []post.MediaRef) []Entry {
	entries := make([]Entry, len(refs))
	var wg sync.WaitGroup
	for i, ref := range refs {
		wg.Add(1)
		go func(i int, ref post.MediaRef) {
			defer wg.Done()
			entries[i] = c.Fetch(ctx, ref)
		}(i, ref)
	}
	wg.Wait()
	return entries
}

func (c *Cache) resolve(ctx context.Context, ref post.MediaRef, fingerprint string) Entry {
	path := EntryPath(c.root, ref)

	if size, ok := fileutil.NonEmptyFile(path); ok {
		return Entry{Ref: ref, Fingerprint: fingerprint, Path: path, Size: size, Source: SourceCached}
	}

	select {
	case c.sem <- struct{}{}:
		defer func() { <-c.sem }()
	case <-ctx.Done():
		return c.failedEntry(ref, fingerprint, 0, ctx.Err())
	}

	attempts := c.policy.Attempts()
	used := 0
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		used = attempt
		size, err := c.download(ctx, ref, path)
		if err == nil {
			c.logger.Debug("media fetched",
				logging.String(logging.FieldFingerprint, fingerprint),
				logging.Int(logging.FieldAttempt, attempt),
				logging.Int64("bytes", size))
			return Entry{Ref: ref, Fingerprint: fingerprint, Path: path, Size: size, Source: SourceFresh, Attempts: attempt}
		}
		lastErr = err

		if !services.Retryable(err) || attempt == attempts || ctx.Err() != nil {
			break
		}
		c.addRetry()
		if err := c.sleep(ctx, c.policy.Delay(attempt)); err != nil {
			lastErr = err
			break
		}
	}

	c.logger.Debug("media fetch failed",
		logging.String(logging.FieldFingerprint, fingerprint),
		logging.Error(lastErr))
	return c.failedEntry(ref, fingerprint, used, lastErr)
}

// download performs one network attempt and lands the bytes atomically: a
// temporary sibling first, renamed into place only when the body read
// completed, so readers never observe a partial file.
func (c *Cache) download(ctx context.Context, ref post.MediaRef, path string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.String(), nil)
	if err != nil {
		return 0, services.Wrap(services.ErrPermanentRequest, "mediacache", "fetch", "build request", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		marker := services.ErrPermanentRequest
		if retryableStatus(resp.StatusCode) {
			marker = services.ErrTransientNetwork
		}
		return 0, services.Wrap(marker, "mediacache", "fetch", fmt.Sprintf("http %d", resp.StatusCode), nil)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return 0, services.Wrap(services.ErrConfiguration, "mediacache", "fetch", "create temp file", err)
	}
	tmpPath := tmp.Name()
	discard := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	body := io.Reader(resp.Body)
	if c.maxBytes > 0 {
		body = io.LimitReader(resp.Body, c.maxBytes+1)
	}
	size, err := io.Copy(tmp, body)
	if err != nil {
		discard()
		return 0, classifyTransportError(err)
	}
	if c.maxBytes > 0 && size > c.maxBytes {
		discard()
		return 0, services.Wrap(services.ErrPermanentRequest, "mediacache", "fetch",
			fmt.Sprintf("media exceeds %d byte limit", c.maxBytes), nil)
	}
	if size == 0 {
		discard()
		return 0, services.Wrap(services.ErrTransientNetwork, "mediacache", "fetch", "empty response body", nil)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return 0, services.Wrap(services.ErrConfiguration, "mediacache", "fetch", "close temp file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return 0, services.Wrap(services.ErrConfiguration, "mediacache", "fetch", "finalize file", err)
	}
	return size, nil
}

func (c *Cache) failedEntry(ref post.MediaRef, fingerprint string, attempts int, err error) Entry {
	entry := Entry{Ref: ref, Fingerprint: fingerprint, Source: SourceFailed, Attempts: attempts}
	if err != nil {
		entry.Err = err.Error()
	} else {
		entry.Err = "fetch failed"
	}
	return entry
}

// record must be called with c.mu held.
func (c *Cache) record(entry Entry) {
	switch entry.Source {
	case SourceFresh:
		c.counters.Fresh++
		c.counters.Bytes += entry.Size
	case SourceCached:
		c.counters.Cached++
	case SourceFailed:
		c.counters.Failed++
	}
}

func (c *Cache) addRetry() {
	c.mu.Lock()
	c.counters.Retries++
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

func classifyTransportError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTransientNetwork, "mediacache", "fetch", "request aborted", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return services.Wrap(services.ErrTransientNetwork, "mediacache", "fetch", "timeout", err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return services.Wrap(services.ErrTransientNetwork, "mediacache", "fetch", "connection failure", err)
	}
	return services.Wrap(services.ErrTransientNetwork, "mediacache", "fetch", "transport failure", err)
}
