package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"

	"optic/internal/checkpoint"
	"optic/internal/pipeline"
	"optic/internal/textutil"
)

// statusOrder fixes the display order of terminal statuses.
var statusOrder = []checkpoint.Status{
	checkpoint.StatusSucceeded,
	checkpoint.StatusFetchFailed,
	checkpoint.StatusParseFailed,
	checkpoint.StatusExhaustedRetries,
}

func renderSummary(out io.Writer, summary *pipeline.Summary) {
	colorize := shouldColorize(out)

	for _, line := range renderSectionHeader("Run Summary", colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Run", statusInfo, summary.RunID, colorize))
	fmt.Fprintln(out, renderStatusLine("Elapsed", statusInfo, summary.Elapsed.String(), colorize))
	if summary.Interrupted {
		fmt.Fprintln(out, renderStatusLine("Interrupted", statusWarn, "run stopped early; rerun to resume", colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Batch", statusInfo,
		fmt.Sprintf("%d total, %d already done, %d processed now", summary.Total, summary.Skipped, summary.Processed), colorize))

	okKind := statusOK
	if summary.Failed > 0 {
		okKind = statusWarn
	}
	fmt.Fprintln(out, renderStatusLine("Outcomes", okKind,
		fmt.Sprintf("%d succeeded, %d failed", summary.Succeeded, summary.Failed), colorize))
	fmt.Fprintln(out, renderStatusLine("Detections", statusInfo, strconv.Itoa(summary.Detected), colorize))
	fmt.Fprintln(out, renderStatusLine("Fetch", statusInfo,
		fmt.Sprintf("%d fresh, %d cached, %d failed, %s downloaded",
			summary.Fetch.Fresh, summary.Fetch.Cached, summary.Fetch.Failed, formatBytes(summary.Fetch.Bytes)), colorize))
	fmt.Fprintln(out, renderStatusLine("Tokens", statusInfo,
		fmt.Sprintf("%d prompt, %d completion", summary.Prompt, summary.Completion), colorize))

	if len(summary.ByStatus) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderStatusTable(summary.ByStatus))
	}
	if len(summary.ByCategory) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderCountTable("Category", sortedKeys(summary.ByCategory), summary.ByCategory))
	}
	if len(summary.ByLanguage) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderCountTable("Language", sortedKeys(summary.ByLanguage), summary.ByLanguage))
	}

	if len(summary.Failures) > 0 {
		fmt.Fprintln(out)
		for _, line := range renderSectionHeader("Failures", colorize) {
			fmt.Fprintln(out, line)
		}
		fmt.Fprintln(out, renderFailureTable(summary.Failures))
	}
}

func renderStatusTable(byStatus map[checkpoint.Status]int) string {
	rows := make([]table.Row, 0, len(byStatus))
	for _, status := range statusOrder {
		if count, ok := byStatus[status]; ok {
			rows = append(rows, table.Row{string(status), strconv.Itoa(count)})
		}
	}
	return renderTable(table.Row{"Status", "Count"}, rows, 2)
}

func renderFailureTable(failures []pipeline.Failure) string {
	rows := make([]table.Row, 0, len(failures))
	for _, failure := range failures {
		rows = append(rows, table.Row{
			failure.ItemID,
			string(failure.Category),
			textutil.Snippet(failure.Evidence, 80),
		})
	}
	return renderTable(table.Row{"Item", "Status", "Evidence"}, rows)
}

func sortedKeys(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	// Highest count first, name breaks ties.
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
