package checkpoint

import (
	"time"
)

// Status tracks one item through the run.
type Status string

const (
	StatusPending          Status = "pending"
	StatusInProgress       Status = "in_progress"
	StatusSucceeded        Status = "succeeded"
	StatusFetchFailed      Status = "fetch_failed"
	StatusParseFailed      Status = "parse_failed"
	StatusExhaustedRetries Status = "exhausted_retries"
)

// Terminal reports whether the status will not be revisited on resume.
// in_progress is deliberately not terminal: an interrupted item is
// reattempted from scratch on the next run.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFetchFailed, StatusParseFailed, StatusExhaustedRetries:
		return true
	default:
		return false
	}
}

// Failed reports whether the status is terminal and not succeeded.
func (s Status) Failed() bool {
	return s.Terminal() && s != StatusSucceeded
}

// Outcome is the durable record for one completed item. Later records for the
// same item supersede earlier ones; the ledger never holds two.
type Outcome struct {
	ItemID     string    `json:"item_id"`
	Status     Status    `json:"status"`
	Attempts   int       `json:"attempts,omitempty"`
	Retries    int       `json:"retries,omitempty"`
	Error      string    `json:"error,omitempty"`
	Detected   bool      `json:"detected,omitempty"`
	Seq        uint64    `json:"seq"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Counters aggregates terminal outcomes. Derived state: recomputed from the
// outcome records whenever a checkpoint is loaded.
type Counters struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Stats carries run tallies that the outcome records alone cannot reproduce:
// verdict rollups, token usage, and fetch-layer counters.
type Stats struct {
	Detected         int            `json:"detected,omitempty"`
	ByCategory       map[string]int `json:"by_category,omitempty"`
	ByLanguage       map[string]int `json:"by_language,omitempty"`
	PromptTokens     int64          `json:"prompt_tokens,omitempty"`
	CompletionTokens int64          `json:"completion_tokens,omitempty"`
	AnalysisRetries  int64          `json:"analysis_retries,omitempty"`
	FetchFresh       int64          `json:"fetch_fresh,omitempty"`
	FetchCached      int64          `json:"fetch_cached,omitempty"`
	FetchFailed      int64          `json:"fetch_failed,omitempty"`
	FetchRetries     int64          `json:"fetch_retries,omitempty"`
	FetchBytes       int64          `json:"fetch_bytes,omitempty"`
}

// State is the checkpoint ledger: every terminal outcome recorded so far plus
// aggregate counters and a monotonically increasing cursor. A single goroutine
// owns a State at a time; it is not safe for concurrent mutation.
type State struct {
	Version   int       `json:"version"`
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	SavedAt   time.Time `json:"saved_at"`
	Cursor    uint64    `json:"cursor"`
	Outcomes  []Outcome `json:"outcomes"`
	Counters  Counters  `json:"counters"`
	Stats     Stats     `json:"stats"`

	index map[string]int
}

const stateVersion = 1

// NewState builds an empty ledger for a fresh run.
func NewState(runID string) *State {
	return &State{
		Version:   stateVersion,
		RunID:     runID,
		StartedAt: time.Now().UTC(),
		Outcomes:  make([]Outcome, 0, 64),
		index:     make(map[string]int),
	}
}

// Record stores a terminal outcome for an item. A repeat record for the same
// item keeps its original position in the ledger but takes the new status,
// sequence, and counters. Non-terminal statuses are ignored; the ledger only
// ever holds terminal outcomes.
func (s *State) Record(o Outcome) {
	if o.ItemID == "" || !o.Status.Terminal() {
		return
	}
	s.ensureIndex()

	s.Cursor++
	o.Seq = s.Cursor
	if o.RecordedAt.IsZero() {
		o.RecordedAt = time.Now().UTC()
	}

	if pos, ok := s.index[o.ItemID]; ok {
		prev := s.Outcomes[pos]
		if prev.Status == StatusSucceeded {
			s.Counters.Succeeded--
		} else {
			s.Counters.Failed--
		}
		s.Counters.Attempted--
		s.Outcomes[pos] = o
	} else {
		s.index[o.ItemID] = len(s.Outcomes)
		s.Outcomes = append(s.Outcomes, o)
	}

	s.Counters.Attempted++
	if o.Status == StatusSucceeded {
		s.Counters.Succeeded++
	} else {
		s.Counters.Failed++
	}
}

// Outcome returns the recorded outcome for an item, if any.
func (s *State) Outcome(itemID string) (Outcome, bool) {
	s.ensureIndex()
	pos, ok := s.index[itemID]
	if !ok {
		return Outcome{}, false
	}
	return s.Outcomes[pos], true
}

// Terminal reports whether the item already has a terminal outcome and can be
// skipped on resume.
func (s *State) Terminal(itemID string) bool {
	o, ok := s.Outcome(itemID)
	return ok && o.Status.Terminal()
}

// Failures returns the non-succeeded outcomes in ledger order.
func (s *State) Failures() []Outcome {
	failures := make([]Outcome, 0)
	for _, o := range s.Outcomes {
		if o.Status.Failed() {
			failures = append(failures, o)
		}
	}
	return failures
}

// Len returns the number of items with a recorded outcome.
func (s *State) Len() int {
	return len(s.Outcomes)
}

// recompute rebuilds the index, counters, and cursor from the outcome records.
// Counters are derived state and never trusted from disk.
func (s *State) recompute() {
	s.index = make(map[string]int, len(s.Outcomes))
	s.Counters = Counters{}
	for pos, o := range s.Outcomes {
		s.index[o.ItemID] = pos
		s.Counters.Attempted++
		if o.Status == StatusSucceeded {
			s.Counters.Succeeded++
		} else {
			s.Counters.Failed++
		}
		if o.Seq > s.Cursor {
			s.Cursor = o.Seq
		}
	}
}

func (s *State) ensureIndex() {
	if s.index == nil {
		s.recompute()
	}
}
