package testsupport

import (
	"testing"

	"optic/internal/config"
	"optic/internal/results"
)

// MustOpenResults opens the results archive for tests and registers cleanup.
func MustOpenResults(t testing.TB, cfg *config.Config) *results.Store {
	t.Helper()

	store, err := results.Open(cfg.Paths.ResultsDB)
	if err != nil {
		t.Fatalf("results.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
