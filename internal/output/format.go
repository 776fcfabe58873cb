// Package output provides formatters for CLI output.
package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"tasklist/internal/service"
)

// DateLayout is how dates are shown.
const DateLayout = "2006-01-02 15:04"

// FormatTask formats a task line.
// Format: "{N:>4}  [x] {TEXT}\n" (4-wide right-aligned number, two spaces,
// completion box, text)
func FormatTask(w io.Writer, num int, task service.Task) {
	box := "[ ]"
	if task.Completed {
		box = "[x]"
	}
	fmt.Fprintf(w, "%4d  %s %s\n", num, box, normalizeText(task.Text))
}

// FormatSummary prints the counters line under a list.
func FormatSummary(w io.Writer, tasks []service.Task) {
	done := 0
	for _, t := range tasks {
		if t.Completed {
			done++
		}
	}
	fmt.Fprintf(w, "%d total, %d active, %d completed\n", len(tasks), len(tasks)-done, done)
}

// FormatProfile prints the user's profile.
func FormatProfile(w io.Writer, id, email string, created time.Time) {
	fmt.Fprintf(w, "id:      %s\n", id)
	fmt.Fprintf(w, "email:   %s\n", email)
	fmt.Fprintf(w, "created: %s\n", formatDate(created))
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(DateLayout)
}

// normalizeText normalizes a task text for display.
// - Empty or whitespace-only texts become "(untitled)"
// - Newlines are replaced with spaces
func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r", " ")
	text = strings.ReplaceAll(text, "\n", " ")

	if strings.TrimSpace(text) == "" {
		return "(untitled)"
	}
	return text
}
