package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"optic/internal/checkpoint"
	"optic/internal/language"
	"optic/internal/logging"
	"optic/internal/mediacache"
	"optic/internal/post"
	"optic/internal/results"
	"optic/internal/services"
	"optic/internal/services/vision"
	"optic/internal/textutil"
)

// Fetcher resolves media references to local files. Satisfied by
// *mediacache.Cache.
type Fetcher interface {
	FetchAll(ctx context.Context, refs []post.MediaRef) []mediacache.Entry
	Counters() mediacache.Counters
}

// Analyst runs one post through the vision endpoint. Satisfied by
// *vision.Client.
type Analyst interface {
	Analyze(ctx context.Context, item post.Item, mediaPaths []string) (*vision.Result, error)
}

// Archive persists full outcomes for export. Satisfied by *results.Store.
type Archive interface {
	Upsert(ctx context.Context, rec results.Record) error
}

// Config bounds the orchestrator's pools and checkpoint cadence.
type Config struct {
	// Workers is the analysis pool width. The reference deployment is one
	// local inference endpoint that serializes requests, so the default is 1.
	Workers int
	// CheckpointInterval is how many completions pass between persisted
	// checkpoints. A crash loses at most this much finished work.
	CheckpointInterval int
}

// Progress reports one completion to an observer (the CLI progress bar).
type Progress struct {
	Done    int
	Total   int
	Outcome checkpoint.Outcome
}

// Orchestrator coordinates one batch run.
type Orchestrator struct {
	cfg      Config
	fetcher  Fetcher
	analyst  Analyst
	store    *checkpoint.Store
	archive  Archive
	logger   *slog.Logger
	progress func(Progress)

	fetchBaseline mediacache.Counters
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithArchive attaches the results archive. Archive failures are logged, not
// fatal: the checkpoint remains the source of truth.
func WithArchive(archive Archive) Option {
	return func(o *Orchestrator) { o.archive = archive }
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logging.NewComponentLogger(logger, "pipeline")
		}
	}
}

// WithProgress registers a completion observer, called from the aggregator
// goroutine only.
func WithProgress(fn func(Progress)) Option {
	return func(o *Orchestrator) { o.progress = fn }
}

// New builds an orchestrator over the given collaborators.
func New(cfg Config, fetcher Fetcher, analyst Analyst, store *checkpoint.Store, opts ...Option) *Orchestrator {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.CheckpointInterval < 1 {
		cfg.CheckpointInterval = 10
	}
	o := &Orchestrator{
		cfg:     cfg,
		fetcher: fetcher,
		analyst: analyst,
		store:   store,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// completion pairs a terminal outcome with its archive record. A nil-ID
// outcome signals an abandoned item (context cancelled mid-flight) that must
// not be recorded.
type completion struct {
	outcome checkpoint.Outcome
	verdict *vision.Verdict
	record  results.Record
}

// Run drives the batch. It acquires the checkpoint lock, resumes from any
// prior state, processes non-terminal items, and always leaves a consistent
// checkpoint behind. The returned summary covers the whole accumulated
// state, not only this process's work. A cancelled context is a clean
// interrupt, not an error.
func (o *Orchestrator) Run(ctx context.Context, items []post.Item) (*Summary, error) {
	startedAt := time.Now()

	if err := o.store.Acquire(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "run", "checkpoint lock", err)
	}
	defer func() { _ = o.store.Release() }()

	state, err := o.store.Load()
	if err != nil {
		// A corrupt checkpoint stops the run; discarding it would re-run
		// finished work and overwrite the evidence.
		return nil, err
	}
	resumed := state != nil
	if state == nil {
		state = checkpoint.NewState(uuid.NewString())
	}

	items, dropped := post.Dedupe(items)
	for _, id := range dropped {
		o.logger.Warn("dropping duplicate item id", logging.String(logging.FieldItemID, id))
	}

	pending := make([]post.Item, 0, len(items))
	for _, item := range items {
		if !state.Terminal(item.ID) {
			pending = append(pending, item)
		}
	}
	skipped := len(items) - len(pending)

	o.logger.Info("run starting",
		logging.String(logging.FieldRunID, state.RunID),
		logging.Bool("resumed", resumed),
		logging.Int("total", len(items)),
		logging.Int("skipped", skipped),
		logging.Int("pending", len(pending)),
		logging.Int("workers", o.cfg.Workers))

	processed, interrupted, err := o.process(ctx, state, pending, skipped, len(items))
	if err != nil {
		return nil, err
	}

	runCtx := runContext{
		total:       len(items),
		skipped:     skipped,
		processed:   processed,
		elapsed:     time.Since(startedAt).Round(time.Second),
		interrupted: interrupted,
		// Fetch counters come from the checkpoint so resumes report the
		// accumulated totals, not just this process's work.
		fetch: mediacache.Counters{
			Fresh:   state.Stats.FetchFresh,
			Cached:  state.Stats.FetchCached,
			Failed:  state.Stats.FetchFailed,
			Retries: state.Stats.FetchRetries,
			Bytes:   state.Stats.FetchBytes,
		},
	}
	summary := buildSummary(state, runCtx)

	o.logger.Info("run finished",
		logging.String(logging.FieldRunID, state.RunID),
		logging.Int("processed", processed),
		logging.Int("succeeded", summary.Succeeded),
		logging.Int("failed", summary.Failed),
		logging.Bool("interrupted", interrupted),
		logging.Duration("elapsed", runCtx.elapsed))
	return summary, nil
}

// process runs the worker pool and the single-writer aggregator. It returns
// how many items completed in this process and whether the run was cut short
// by cancellation.
func (o *Orchestrator) process(ctx context.Context, state *checkpoint.State, pending []post.Item, skipped, total int) (int, bool, error) {
	if len(pending) == 0 {
		// Nothing to do; still refresh the checkpoint so stats and saved_at
		// reflect this run.
		if err := o.save(state); err != nil {
			return 0, false, err
		}
		return 0, false, nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	work := make(chan post.Item)
	completions := make(chan completion)

	var workers sync.WaitGroup
	for i := 0; i < o.cfg.Workers; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for item := range work {
				completions <- o.processItem(runCtx, state.RunID, item)
			}
		}()
	}

	go func() {
		defer close(work)
		for _, item := range pending {
			select {
			case work <- item:
			case <-runCtx.Done():
				return
			}
		}
	}()

	go func() {
		workers.Wait()
		close(completions)
	}()

	// Aggregator: this loop is the sole writer of state and statistics.
	processed := 0
	sinceSave := 0
	var saveErr error
	for comp := range completions {
		if comp.outcome.ItemID == "" {
			continue // abandoned mid-flight, stays pending
		}
		state.Record(comp.outcome)
		o.applyStats(state, comp)
		o.archiveRecord(comp.record)

		processed++
		sinceSave++
		if o.progress != nil {
			o.progress(Progress{Done: skipped + processed, Total: total, Outcome: comp.outcome})
		}
		o.logger.Info("item finished",
			logging.String(logging.FieldItemID, comp.outcome.ItemID),
			logging.String(logging.FieldStatus, string(comp.outcome.Status)),
			logging.Int(logging.FieldAttempt, comp.outcome.Attempts))

		if sinceSave >= o.cfg.CheckpointInterval {
			if err := o.save(state); err != nil {
				saveErr = err
				break
			}
			sinceSave = 0
		}
	}
	if saveErr != nil {
		// Stop feeding work and drain the pool so goroutines do not leak.
		cancel()
		for range completions {
		}
		return processed, false, saveErr
	}

	if err := o.save(state); err != nil {
		return processed, false, err
	}
	return processed, ctx.Err() != nil, nil
}

// processItem takes one item through fetch then analysis and shapes the
// terminal outcome. Failures never escape as errors; they become outcomes.
func (o *Orchestrator) processItem(ctx context.Context, runID string, item post.Item) completion {
	if ctx.Err() != nil {
		return completion{}
	}

	entries := o.fetcher.FetchAll(ctx, item.Media)
	paths := make([]string, 0, len(entries))
	var lastFetchErr string
	for _, entry := range entries {
		if entry.OK() {
			paths = append(paths, entry.Path)
		} else if entry.Err != "" {
			lastFetchErr = entry.Err
		}
	}

	// Every reference failing is a fetch failure; an item with no media at
	// all, or with any usable media, still goes to analysis.
	if len(item.Media) > 0 && len(paths) == 0 {
		if ctx.Err() != nil {
			return completion{}
		}
		return o.failureCompletion(runID, item, checkpoint.StatusFetchFailed, lastFetchErr, nil)
	}

	result, err := o.analyst.Analyze(ctx, item, paths)
	if err != nil {
		if ctx.Err() != nil {
			return completion{}
		}
		return o.failureCompletion(runID, item, services.FailureStatus(err), err.Error(), result)
	}

	outcome := checkpoint.Outcome{
		ItemID:   item.ID,
		Status:   checkpoint.StatusSucceeded,
		Attempts: result.Attempts,
		Retries:  result.Retries,
		Detected: result.Verdict.NicotineDetection.IsDetected(),
	}
	return completion{
		outcome: outcome,
		verdict: result.Verdict,
		record: results.Record{
			ItemID:           item.ID,
			RunID:            runID,
			Status:           checkpoint.StatusSucceeded,
			Detected:         outcome.Detected,
			VerdictJSON:      result.Raw,
			Attempts:         result.Attempts,
			Retries:          result.Retries,
			PromptTokens:     result.Usage.PromptTokens,
			CompletionTokens: result.Usage.CompletionTokens,
		},
	}
}

func (o *Orchestrator) failureCompletion(runID string, item post.Item, status checkpoint.Status, evidence string, result *vision.Result) completion {
	outcome := checkpoint.Outcome{
		ItemID: item.ID,
		Status: status,
		Error:  textutil.Snippet(evidence, 500),
	}
	record := results.Record{
		ItemID: item.ID,
		RunID:  runID,
		Status: status,
		Error:  outcome.Error,
	}
	if result != nil {
		outcome.Attempts = result.Attempts
		outcome.Retries = result.Retries
		record.Attempts = result.Attempts
		record.Retries = result.Retries
		record.PromptTokens = result.Usage.PromptTokens
		record.CompletionTokens = result.Usage.CompletionTokens
		if status == checkpoint.StatusParseFailed {
			record.RawResponse = result.Raw
		}
	}
	return completion{outcome: outcome, record: record}
}

// applyStats folds one completion into the stats block. Called only from the
// aggregator loop.
func (o *Orchestrator) applyStats(state *checkpoint.State, comp completion) {
	stats := &state.Stats
	stats.AnalysisRetries += int64(comp.outcome.Retries)

	if comp.verdict == nil {
		return
	}
	stats.PromptTokens += int64(comp.record.PromptTokens)
	stats.CompletionTokens += int64(comp.record.CompletionTokens)
	if comp.verdict.NicotineDetection.IsDetected() {
		stats.Detected++
		if stats.ByCategory == nil {
			stats.ByCategory = make(map[string]int)
		}
		for _, category := range comp.verdict.Categories() {
			stats.ByCategory[category]++
		}
	}
	if label := language.Normalize(comp.verdict.Metadata.PrimaryLanguage); label != "Unknown" {
		if stats.ByLanguage == nil {
			stats.ByLanguage = make(map[string]int)
		}
		stats.ByLanguage[label]++
	}
}

func (o *Orchestrator) archiveRecord(rec results.Record) {
	if o.archive == nil || rec.ItemID == "" {
		return
	}
	if err := o.archive.Upsert(context.Background(), rec); err != nil {
		o.logger.Error("archive write failed",
			logging.String(logging.FieldItemID, rec.ItemID),
			logging.Error(err))
	}
}

func (o *Orchestrator) save(state *checkpoint.State) error {
	// The fetch counters live on the cache, not on outcomes, so refresh them
	// into the stats block at every persist.
	o.syncFetchStats(state)
	if err := o.store.Save(state); err != nil {
		return fmt.Errorf("persist checkpoint: %w", err)
	}
	o.logger.Debug("checkpoint saved",
		logging.Int("outcomes", state.Len()),
		logging.Uint64("cursor", state.Cursor))
	return nil
}

// syncFetchStats folds the cache counters accumulated by this process into
// the checkpoint stats. The baseline tracks what was already folded so
// repeated saves never double-count.
func (o *Orchestrator) syncFetchStats(state *checkpoint.State) {
	current := o.fetcher.Counters()
	stats := &state.Stats
	stats.FetchFresh += current.Fresh - o.fetchBaseline.Fresh
	stats.FetchCached += current.Cached - o.fetchBaseline.Cached
	stats.FetchFailed += current.Failed - o.fetchBaseline.Failed
	stats.FetchRetries += current.Retries - o.fetchBaseline.Retries
	stats.FetchBytes += current.Bytes - o.fetchBaseline.Bytes
	o.fetchBaseline = current
}
