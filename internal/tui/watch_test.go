package tui

import (
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"optic/internal/checkpoint"
)

func seedStore(t *testing.T) *checkpoint.Store {
	t.Helper()
	store := checkpoint.NewStore(filepath.Join(t.TempDir(), "checkpoint.json"))
	state := checkpoint.NewState("run-9")
	state.Record(checkpoint.Outcome{ItemID: "p1", Status: checkpoint.StatusSucceeded, Detected: true})
	state.Record(checkpoint.Outcome{ItemID: "p2", Status: checkpoint.StatusFetchFailed, Error: "status 404"})
	state.Stats.Detected = 1
	if err := store.Save(state); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return store
}

func TestWatchViewRendersState(t *testing.T) {
	store := seedStore(t)
	model := NewWatchModel(store, 5)

	msg := model.load()
	updated, _ := model.Update(msg)
	view := updated.View()

	for _, want := range []string{"run-9", "2/5", "1 succeeded", "1 failed", "1 detected", "p2", "throughput:", "eta:"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestWatchViewBeforeCheckpointExists(t *testing.T) {
	store := checkpoint.NewStore(filepath.Join(t.TempDir(), "checkpoint.json"))
	model := NewWatchModel(store, 0)

	msg := model.load()
	updated, _ := model.Update(msg)
	if view := updated.View(); !strings.Contains(view, "waiting for a checkpoint") {
		t.Errorf("view should report missing checkpoint:\n%s", view)
	}
}

func TestWatchQuitKeys(t *testing.T) {
	model := NewWatchModel(seedStore(t), 0)
	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("q should produce a quit command")
	}
	if msg := cmd(); msg == nil {
		t.Fatalf("quit command produced nil msg")
	} else if _, ok := msg.(tea.QuitMsg); !ok {
		t.Fatalf("q produced %T, want tea.QuitMsg", msg)
	}
}

func TestRecentOutcomesNewestFirst(t *testing.T) {
	state := checkpoint.NewState("run")
	for _, id := range []string{"a", "b", "c"} {
		state.Record(checkpoint.Outcome{ItemID: id, Status: checkpoint.StatusSucceeded})
	}
	recent := recentOutcomes(state, 2)
	if len(recent) != 2 || recent[0].ItemID != "c" || recent[1].ItemID != "b" {
		t.Fatalf("recent = %v, want [c b]", recent)
	}
}
