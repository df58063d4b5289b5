package output

import (
	"bytes"
	"testing"

	"todo/internal/service"
	"todo/internal/state"
	"todo/internal/testutil"
)

func TestFormatTask(t *testing.T) {
	tests := []struct {
		name string
		task service.Task
		want string
	}{
		{"open", service.Task{ID: 1, Title: "Buy milk"}, "   1  [ ] Buy milk\n"},
		{"completed", service.Task{ID: 12, Title: "Call mom", Completed: true}, "  12  [x] Call mom\n"},
		{"newlines", service.Task{ID: 3, Title: "a\nb\r\nc"}, "   3  [ ] a b  c\n"},
		{"blank", service.Task{ID: 4, Title: "  "}, "   4  [ ] (untitled)\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			FormatTask(&buf, tt.task)
			if buf.String() != tt.want {
				t.Errorf("expected %q, got %q", tt.want, buf.String())
			}
		})
	}
}

func TestFormatView_Loading(t *testing.T) {
	var buf bytes.Buffer
	FormatView(&buf, state.Initial())
	testutil.GoldenString(t, "view_loading", buf.String())
}

func TestFormatView_Empty(t *testing.T) {
	var buf bytes.Buffer
	FormatView(&buf, state.State{})
	testutil.GoldenString(t, "view_empty", buf.String())
}

func TestFormatView_ItemsWithError(t *testing.T) {
	st := state.State{
		Items: []service.Task{
			{ID: 2, Title: "Walk the dog", Completed: true},
			{ID: 1, Title: "Buy milk"},
		},
		Err: service.Remote(service.KindAuth, "JWT expired"),
	}

	var buf bytes.Buffer
	FormatView(&buf, st)
	testutil.GoldenString(t, "view_items_error", buf.String())
}

func TestFormatBanner(t *testing.T) {
	var buf bytes.Buffer
	FormatBanner(&buf, "failed to add task", false)
	if got := buf.String(); got != "error: failed to add task\n" {
		t.Errorf("unexpected banner %q", got)
	}
}
