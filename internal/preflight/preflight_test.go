package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"optic/internal/checkpoint"
	"optic/internal/config"
	"optic/internal/post"
	"optic/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckCheckpointLock_Free(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	result := CheckCheckpointLock(path)
	if !result.Passed {
		t.Fatalf("expected pass for free lock, got: %s", result.Detail)
	}
}

func TestCheckCheckpointLock_Held(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	store := checkpoint.NewStore(path)
	if err := store.Acquire(); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer store.Release()

	result := CheckCheckpointLock(path)
	if result.Passed {
		t.Fatal("expected failure while another store holds the lock")
	}
}

func TestCheckItemsFile_OK(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.json")
	payload := `[{"id":"p1","url":"https://example.com/p/p1"}]`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckItemsFile(path)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckItemsFile_Missing(t *testing.T) {
	result := CheckItemsFile(filepath.Join(t.TempDir(), "nope.json"))
	if result.Passed {
		t.Fatal("expected failure for missing file")
	}
}

func TestCheckItemsFile_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.json")
	if err := os.WriteFile(path, []byte("[]"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckItemsFile(path)
	if result.Passed {
		t.Fatal("expected failure for empty batch")
	}
}

func TestCheckVisionEndpoint_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Analysis.BaseURL = srv.URL
	result := CheckVisionEndpoint(context.Background(), &cfg)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckVisionEndpoint_MissingURL(t *testing.T) {
	cfg := config.Default()
	cfg.Analysis.BaseURL = ""
	result := CheckVisionEndpoint(context.Background(), &cfg)
	if result.Passed {
		t.Fatal("expected failure for missing base_url")
	}
}

func TestCheckVisionEndpoint_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	srv.Close()

	cfg := config.Default()
	cfg.Analysis.BaseURL = srv.URL
	result := CheckVisionEndpoint(context.Background(), &cfg)
	if result.Passed {
		t.Fatal("expected failure for unreachable endpoint")
	}
}

func TestRunAllWithConfiguredItemsFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t,
		testsupport.WithBaseURL(srv.URL),
		testsupport.WithItemsFile([]post.Item{{ID: "p1", URL: "https://example.com/p/p1"}}),
	)

	results := RunAll(context.Background(), cfg)
	if len(results) != 6 {
		t.Fatalf("expected 6 checks with items file configured, got %d", len(results))
	}
	if !AllPassed(results) {
		for _, r := range results {
			if !r.Passed {
				t.Errorf("%s failed: %s", r.Name, r.Detail)
			}
		}
		t.Fatal("expected all checks to pass")
	}
}

func TestRunAllNilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatalf("expected nil results for nil config, got %d", len(results))
	}
}

func TestAllPassed(t *testing.T) {
	if !AllPassed([]Result{{Passed: true}, {Passed: true}}) {
		t.Fatal("all passing results should report true")
	}
	if AllPassed([]Result{{Passed: true}, {Passed: false}}) {
		t.Fatal("one failing result should report false")
	}
}
