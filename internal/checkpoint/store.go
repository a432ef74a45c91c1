package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/gofrs/flock"

	"optic/internal/fileutil"
)

// ErrCorrupt marks a checkpoint file that is present but cannot be parsed or
// fails validation. It is fatal to the run; a corrupt ledger is never
// silently discarded.
var ErrCorrupt = errors.New("checkpoint corrupted")

// Store persists the checkpoint ledger as a single JSON file with an advisory
// lock alongside it. Writes go through a temp-file-then-rename step so a
// crash mid-write never damages the last good checkpoint.
type Store struct {
	path string
	lock *flock.Flock
}

// NewStore returns a store for the checkpoint at path. The advisory lock file
// lives next to it with a .lock suffix.
func NewStore(path string) *Store {
	return &Store{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the checkpoint file path.
func (s *Store) Path() string { return s.path }

// LockPath returns the advisory lock file path.
func (s *Store) LockPath() string { return s.lock.Path() }

// Acquire takes the advisory lock without blocking. Exactly one process may
// hold write access to a checkpoint at a time.
func (s *Store) Acquire() error {
	ok, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire checkpoint lock %s: %w", s.lock.Path(), err)
	}
	if !ok {
		return fmt.Errorf("another optic run already holds %s", s.lock.Path())
	}
	return nil
}

// Release drops the advisory lock.
func (s *Store) Release() error {
	return s.lock.Unlock()
}

// Exists reports whether a checkpoint file is present.
func (s *Store) Exists() bool {
	info, err := os.Stat(s.path)
	return err == nil && info.Mode().IsRegular()
}

// Load reads the checkpoint. A missing file returns (nil, nil): there is
// nothing to resume. A file that is present but unreadable, unparseable, or
// structurally invalid returns ErrCorrupt. Counters and the cursor are
// recomputed from the outcome records, never trusted from disk.
func (s *Store) Load() (*State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", ErrCorrupt, s.path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrCorrupt, s.path)
	}

	state := &State{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrCorrupt, s.path, err)
	}
	if state.Version != stateVersion {
		return nil, fmt.Errorf("%w: %s has version %d, want %d", ErrCorrupt, s.path, state.Version, stateVersion)
	}
	for i, o := range state.Outcomes {
		if o.ItemID == "" {
			return nil, fmt.Errorf("%w: %s outcome %d has no item id", ErrCorrupt, s.path, i)
		}
		if !o.Status.Terminal() {
			return nil, fmt.Errorf("%w: %s holds non-terminal status %q for item %s", ErrCorrupt, s.path, o.Status, o.ItemID)
		}
	}

	state.recompute()
	return state, nil
}

// Save writes the ledger atomically.
func (s *Store) Save(state *State) error {
	if state == nil {
		return errors.New("save checkpoint: nil state")
	}
	state.SavedAt = time.Now().UTC()
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := fileutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint %s: %w", s.path, err)
	}
	return nil
}

// Archive moves an existing checkpoint aside with a timestamped suffix and
// returns the new name. Used by fresh starts that must not resume. A missing
// checkpoint archives to nothing.
func (s *Store) Archive() (string, error) {
	if !s.Exists() {
		return "", nil
	}
	backup := fmt.Sprintf("%s.%s.bak", s.path, time.Now().UTC().Format("20060102-150405"))
	if err := os.Rename(s.path, backup); err != nil {
		return "", fmt.Errorf("archive checkpoint: %w", err)
	}
	return backup, nil
}
