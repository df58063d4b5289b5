package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/go-kit/kit/log/level"
)

func TestNew_FiltersDebugUnlessEnabled(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, false)

	level.Debug(logger).Log("msg", "hidden")
	level.Error(logger).Log("msg", "shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line leaked: %q", out)
	}
	if !strings.Contains(out, "msg=shown") || !strings.Contains(out, "level=error") {
		t.Errorf("expected error line, got %q", out)
	}
}

func TestNew_DebugEnabled(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, true)

	level.Debug(logger).Log("msg", "visible")

	if !strings.Contains(buf.String(), "msg=visible") {
		t.Errorf("expected debug line, got %q", buf.String())
	}
}
