package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"optic/internal/checkpoint"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	detectStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	faintStyle  = lipgloss.NewStyle().Faint(true)
)

const (
	pollInterval  = time.Second
	recentRows    = 8
	progressWidth = 40
)

type tickMsg time.Time

type stateMsg struct {
	state *checkpoint.State
	err   error
}

// WatchModel is the bubbletea model for "optic watch".
type WatchModel struct {
	store *checkpoint.Store
	total int

	state   *checkpoint.State
	loadErr error
	bar     progress.Model
}

// NewWatchModel builds a watch model over the checkpoint at the store's path.
// total is the batch size from the items file; zero hides the percentage.
func NewWatchModel(store *checkpoint.Store, total int) WatchModel {
	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = progressWidth
	return WatchModel{
		store: store,
		total: total,
		bar:   bar,
	}
}

func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.load, tick())
}

func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tickMsg:
		return m, tea.Batch(m.load, tick())
	case stateMsg:
		m.state = msg.state
		m.loadErr = msg.err
	}
	return m, nil
}

func (m WatchModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("optic watch"))
	b.WriteString("\n\n")

	switch {
	case m.loadErr != nil:
		b.WriteString(failStyle.Render(fmt.Sprintf("checkpoint unreadable: %v", m.loadErr)))
		b.WriteString("\n")
	case m.state == nil:
		b.WriteString(faintStyle.Render("waiting for a checkpoint to appear..."))
		b.WriteString("\n")
	default:
		m.renderState(&b)
	}

	b.WriteString("\n")
	b.WriteString(faintStyle.Render("(q to quit)"))
	b.WriteString("\n")
	return b.String()
}

func (m WatchModel) renderState(b *strings.Builder) {
	state := m.state
	done := state.Counters.Attempted

	fmt.Fprintf(b, "%s %s\n", labelStyle.Render("run:"), state.RunID)
	if m.total > 0 {
		percent := float64(done) / float64(m.total)
		if percent > 1 {
			percent = 1
		}
		fmt.Fprintf(b, "%s %d/%d\n", labelStyle.Render("progress:"), done, m.total)
		b.WriteString(m.bar.ViewAs(percent))
		b.WriteString("\n")
	} else {
		fmt.Fprintf(b, "%s %d completed\n", labelStyle.Render("progress:"), done)
	}

	fmt.Fprintf(b, "%s %s  %s  %s\n",
		labelStyle.Render("totals:"),
		okStyle.Render(fmt.Sprintf("%d succeeded", state.Counters.Succeeded)),
		failStyle.Render(fmt.Sprintf("%d failed", state.Counters.Failed)),
		detectStyle.Render(fmt.Sprintf("%d detected", state.Stats.Detected)))

	if len(state.Stats.ByCategory) > 0 {
		fmt.Fprintf(b, "%s %s\n", labelStyle.Render("categories:"), formatCounts(state.Stats.ByCategory))
	}
	if elapsed := time.Since(state.StartedAt); !state.StartedAt.IsZero() && done > 0 && elapsed > 0 {
		perMinute := float64(done) / elapsed.Minutes()
		fmt.Fprintf(b, "%s %.1f posts/min\n", labelStyle.Render("throughput:"), perMinute)
		if remaining := m.total - done; remaining > 0 && perMinute > 0 {
			eta := time.Duration(float64(remaining)/perMinute*60) * time.Second
			fmt.Fprintf(b, "%s %s\n", labelStyle.Render("eta:"), eta.Round(time.Second))
		}
	}
	if !state.SavedAt.IsZero() {
		fmt.Fprintf(b, "%s %s\n", labelStyle.Render("saved:"), state.SavedAt.Local().Format(time.TimeOnly))
	}

	recent := recentOutcomes(state, recentRows)
	if len(recent) > 0 {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render("recent:"))
		b.WriteString("\n")
		for _, outcome := range recent {
			style := okStyle
			if outcome.Status.Failed() {
				style = failStyle
			}
			marker := " "
			if outcome.Detected {
				marker = detectStyle.Render("*")
			}
			fmt.Fprintf(b, "  %s %s %s\n", marker, style.Render(string(outcome.Status)), outcome.ItemID)
		}
	}
}

// load reads the checkpoint without taking the advisory lock.
func (m WatchModel) load() tea.Msg {
	state, err := m.store.Load()
	return stateMsg{state: state, err: err}
}

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// recentOutcomes returns the n most recently recorded outcomes, newest first.
func recentOutcomes(state *checkpoint.State, n int) []checkpoint.Outcome {
	outcomes := append([]checkpoint.Outcome(nil), state.Outcomes...)
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Seq > outcomes[j].Seq })
	if len(outcomes) > n {
		outcomes = outcomes[:n]
	}
	return outcomes
}

func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s:%d", key, counts[key]))
	}
	return strings.Join(parts, "  ")
}
