package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"optic/internal/checkpoint"
)

const runTestVerdict = `{"nicotine_detection":{"detected":true,"products":[{"category":"IQOS"}]},` +
	`"metadata":{"primary_language":"georgian"}}`

func newVisionTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/models":
			w.WriteHeader(http.StatusOK)
		case "/chat/completions":
			verdict, _ := json.Marshal(runTestVerdict)
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"choices":[{"message":{"content":%s}}],"usage":{"prompt_tokens":40,"completion_tokens":20}}`, verdict)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func writeRunConfig(t *testing.T, env *cliTestEnv, baseURL string) {
	t.Helper()
	content := fmt.Sprintf("[paths]\ndata_dir = %q\n\n[analysis]\nbase_url = %q\n", env.dataDir, baseURL)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func writeItemsFile(t *testing.T, dir string, ids ...string) string {
	t.Helper()
	items := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		items = append(items, map[string]any{
			"id":  id,
			"url": "https://example.com/p/" + id,
		})
	}
	data, err := json.Marshal(items)
	if err != nil {
		t.Fatalf("marshal items: %v", err)
	}
	path := filepath.Join(dir, "items.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write items: %v", err)
	}
	return path
}

func TestRunCommandEndToEnd(t *testing.T) {
	env := setupCLITestEnv(t)
	srv := newVisionTestServer(t)
	defer srv.Close()
	writeRunConfig(t, env, srv.URL)
	itemsPath := writeItemsFile(t, t.TempDir(), "p1", "p2", "p3")

	out, _, err := runCLI(t, []string{"run", itemsPath, "--json", "--no-progress"}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	var summary struct {
		Total     int `json:"total"`
		Succeeded int `json:"succeeded"`
		Failed    int `json:"failed"`
		Detected  int `json:"detected"`
	}
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode summary: %v\n%s", err, out)
	}
	if summary.Total != 3 || summary.Succeeded != 3 || summary.Failed != 0 {
		t.Fatalf("summary = %+v, want 3/3/0", summary)
	}
	if summary.Detected != 3 {
		t.Errorf("detected = %d, want 3", summary.Detected)
	}

	// The run leaves a loadable checkpoint behind.
	store := checkpoint.NewStore(filepath.Join(env.dataDir, "state", "checkpoint.json"))
	state, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if state == nil || state.Len() != 3 {
		t.Fatalf("checkpoint should hold 3 outcomes, got %v", state)
	}
}

func TestRunCommandResumeSkipsFinishedItems(t *testing.T) {
	env := setupCLITestEnv(t)
	srv := newVisionTestServer(t)
	defer srv.Close()
	writeRunConfig(t, env, srv.URL)
	itemsPath := writeItemsFile(t, t.TempDir(), "p1", "p2")

	if _, _, err := runCLI(t, []string{"run", itemsPath, "--json", "--no-progress"}, env.configPath); err != nil {
		t.Fatalf("first run: %v", err)
	}

	out, _, err := runCLI(t, []string{"run", itemsPath, "--json", "--no-progress"}, env.configPath)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	var summary struct {
		Skipped   int `json:"skipped"`
		Processed int `json:"processed"`
	}
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode summary: %v\n%s", err, out)
	}
	if summary.Skipped != 2 || summary.Processed != 0 {
		t.Fatalf("resume summary = %+v, want 2 skipped / 0 processed", summary)
	}
}

func TestRunCommandFreshArchivesCheckpoint(t *testing.T) {
	env := setupCLITestEnv(t)
	srv := newVisionTestServer(t)
	defer srv.Close()
	writeRunConfig(t, env, srv.URL)
	itemsPath := writeItemsFile(t, t.TempDir(), "p1")

	if _, _, err := runCLI(t, []string{"run", itemsPath, "--json", "--no-progress"}, env.configPath); err != nil {
		t.Fatalf("first run: %v", err)
	}

	out, _, err := runCLI(t, []string{"run", itemsPath, "--json", "--no-progress", "--fresh"}, env.configPath)
	if err != nil {
		t.Fatalf("fresh run: %v", err)
	}
	var summary struct {
		Skipped   int `json:"skipped"`
		Processed int `json:"processed"`
	}
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode summary: %v\n%s", err, out)
	}
	if summary.Skipped != 0 || summary.Processed != 1 {
		t.Fatalf("fresh summary = %+v, want 0 skipped / 1 processed", summary)
	}
}

func TestRunCommandFailsPreflightWhenEndpointDown(t *testing.T) {
	env := setupCLITestEnv(t)
	srv := newVisionTestServer(t)
	srv.Close()
	writeRunConfig(t, env, srv.URL)
	itemsPath := writeItemsFile(t, t.TempDir(), "p1")

	if _, _, err := runCLI(t, []string{"run", itemsPath, "--json", "--no-progress"}, env.configPath); err == nil {
		t.Fatal("run should fail preflight with the endpoint down")
	}
}
