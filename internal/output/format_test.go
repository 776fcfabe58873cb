package output_test

import (
	"bytes"
	"testing"
	"time"

	"tasklist/internal/output"
	"tasklist/internal/service"
	"tasklist/internal/testutil"
)

func TestFormatTaskList(t *testing.T) {
	tasks := []service.Task{
		{ID: "1", Text: "Buy milk"},
		{ID: "2", Text: "Walk dog", Completed: true},
		{ID: "3", Text: "   "},
	}

	var buf bytes.Buffer
	for i, task := range tasks {
		output.FormatTask(&buf, i+1, task)
	}
	output.FormatTask(&buf, 12, service.Task{Text: "line one\nline two"})
	output.FormatSummary(&buf, tasks)

	testutil.GoldenString(t, "task_list", buf.String())
}

func TestFormatProfile(t *testing.T) {
	var buf bytes.Buffer
	output.FormatProfile(&buf, "u-1", "a@x.com", time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC))

	testutil.GoldenString(t, "profile", buf.String())
}

func TestFormatProfile_NoDate(t *testing.T) {
	var buf bytes.Buffer
	output.FormatProfile(&buf, "u-1", "a@x.com", time.Time{})

	want := "id:      u-1\nemail:   a@x.com\ncreated: -\n"
	if got := buf.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
