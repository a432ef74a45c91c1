package pipeline

import (
	"time"

	"optic/internal/checkpoint"
	"optic/internal/mediacache"
)

// Failure identifies one non-succeeded item with enough evidence for a
// targeted re-run.
type Failure struct {
	ItemID   string            `json:"item_id"`
	Category checkpoint.Status `json:"category"`
	Evidence string            `json:"evidence,omitempty"`
}

// Summary is the final accounting for one run. It is derived from checkpoint
// state plus component counters and is never independently authoritative.
type Summary struct {
	RunID       string                    `json:"run_id"`
	Total       int                       `json:"total"`
	Skipped     int                       `json:"skipped"`
	Processed   int                       `json:"processed"`
	Succeeded   int                       `json:"succeeded"`
	Failed      int                       `json:"failed"`
	Detected    int                       `json:"detected"`
	ByStatus    map[checkpoint.Status]int `json:"by_status"`
	ByCategory  map[string]int            `json:"by_category,omitempty"`
	ByLanguage  map[string]int            `json:"by_language,omitempty"`
	Fetch       mediacache.Counters       `json:"fetch"`
	Prompt      int64                     `json:"prompt_tokens"`
	Completion  int64                     `json:"completion_tokens"`
	Retries     int64                     `json:"analysis_retries"`
	Elapsed     time.Duration             `json:"elapsed"`
	Interrupted bool                      `json:"interrupted"`
	Failures    []Failure                 `json:"failures,omitempty"`
}

// buildSummary folds the final checkpoint state into the run report.
func buildSummary(state *checkpoint.State, runCtx runContext) *Summary {
	summary := &Summary{
		RunID:       state.RunID,
		Total:       runCtx.total,
		Skipped:     runCtx.skipped,
		Processed:   runCtx.processed,
		Succeeded:   state.Counters.Succeeded,
		Failed:      state.Counters.Failed,
		Detected:    state.Stats.Detected,
		ByStatus:    make(map[checkpoint.Status]int),
		ByCategory:  state.Stats.ByCategory,
		ByLanguage:  state.Stats.ByLanguage,
		Fetch:       runCtx.fetch,
		Prompt:      state.Stats.PromptTokens,
		Completion:  state.Stats.CompletionTokens,
		Retries:     state.Stats.AnalysisRetries,
		Elapsed:     runCtx.elapsed,
		Interrupted: runCtx.interrupted,
	}
	for _, outcome := range state.Outcomes {
		summary.ByStatus[outcome.Status]++
	}
	for _, outcome := range state.Failures() {
		summary.Failures = append(summary.Failures, Failure{
			ItemID:   outcome.ItemID,
			Category: outcome.Status,
			Evidence: outcome.Error,
		})
	}
	return summary
}

type runContext struct {
	total       int
	skipped     int
	processed   int
	elapsed     time.Duration
	interrupted bool
	fetch       mediacache.Counters
}
