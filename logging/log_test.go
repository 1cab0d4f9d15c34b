package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]log.Level{
		"debug":   log.DebugLevel,
		"DEBUG":   log.DebugLevel,
		"warn":    log.WarnLevel,
		"warning": log.WarnLevel,
		"error":   log.ErrorLevel,
		"":        log.InfoLevel,
		"verbose": log.InfoLevel,
	}

	for input, want := range tests {
		if got := ParseLevel(input); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestInitWithWriterFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "test", "warn")
	t.Cleanup(func() { Init("memorygame", "") })

	Info("hidden %d", 1)
	Warn("shown %d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Info should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "shown 2") {
		t.Errorf("Expected warn line in output: %q", out)
	}
	if !strings.Contains(out, "test") {
		t.Errorf("Expected prefix in output: %q", out)
	}
}
