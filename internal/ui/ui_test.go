package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/Makepad-fr/tada-client/internal/model"
)

func useMono(t *testing.T) {
	t.Helper()
	SetTheme("mono")
	t.Cleanup(func() { SetTheme("classic") })
}

func TestProgressBar(t *testing.T) {
	tests := []struct {
		done, total, width int
		want               string
	}{
		{1, 4, 8, "██░░░░░░  25%"},
		{0, 0, 5, "░░░░░   0%"},
		{5, 5, 2, "█████ 100%"},
	}
	for _, tt := range tests {
		if got := ProgressBar(tt.done, tt.total, tt.width); got != tt.want {
			t.Errorf("ProgressBar(%d, %d, %d) = %q, want %q", tt.done, tt.total, tt.width, got, tt.want)
		}
	}
}

func TestPanel(t *testing.T) {
	useMono(t)
	out := Panel([]string{"Todos", "a longer line"})
	lines := strings.Split(out, "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d: %q", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "+-") || !strings.HasSuffix(lines[0], "-+") {
		t.Errorf("unexpected top border %q", lines[0])
	}
	if lines[1] != "| Todos         |" {
		t.Errorf("unexpected padded line %q", lines[1])
	}
}

func TestTodoLine(t *testing.T) {
	useMono(t)
	now := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)
	due := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	open := model.TodoItem{ID: "1", Title: strings.Repeat("x", 100), Priority: model.PriorityHigh, DueDate: &due}
	line := TodoLine(3, open, now)
	for _, want := range []string{" 3.", "[ ]", "!!!", strings.Repeat("x", 77) + "...", "(overdue)"} {
		if !strings.Contains(line, want) {
			t.Errorf("expected %q in %q", want, line)
		}
	}

	done := model.TodoItem{ID: "2", Title: "walk dog", Completed: true, Priority: model.PriorityLow, DueDate: &due}
	line = TodoLine(0, done, now)
	if !strings.HasPrefix(line, "[x] !   walk dog") {
		t.Errorf("unexpected completed line %q", line)
	}
	if strings.Contains(line, "overdue") {
		t.Errorf("completed items are never overdue: %q", line)
	}
}

func TestOutput(t *testing.T) {
	useMono(t)
	var out, errOut bytes.Buffer
	prevOut, prevErr := Out, Err
	Out, Err = &out, &errOut
	t.Cleanup(func() { Out, Err = prevOut, prevErr })

	OK("added")
	Fail("boom")
	Hint("run `tada ls`")

	if out.String() != "ok added\n" {
		t.Errorf("unexpected stdout %q", out.String())
	}
	if errOut.String() != "error: boom\nHint: run `tada ls`\n" {
		t.Errorf("unexpected stderr %q", errOut.String())
	}
}

func TestHeader(t *testing.T) {
	useMono(t)
	if got := Header(2, 3); got != "Todos  x 2  - 3  Total 5" {
		t.Errorf("unexpected header %q", got)
	}
}
