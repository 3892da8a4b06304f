package app

import (
	"bytes"
	"strings"
	"testing"

	"github.com/agis/meetme/internal/output"
)

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, output.ModeJSON, false)
	log.Debug().Msg("hidden")
	log.Warn().Str("calendar", "work").Msg("list events failed")
	got := buf.String()
	if strings.Contains(got, "hidden") {
		t.Fatalf("debug line leaked without --verbose: %q", got)
	}
	if !strings.Contains(got, `"calendar":"work"`) || !strings.Contains(got, `"level":"warn"`) {
		t.Fatalf("expected JSON warn line, got %q", got)
	}

	buf.Reset()
	log = newLogger(&buf, output.ModePlain, true)
	log.Debug().Msg("busy time")
	if got := buf.String(); !strings.Contains(got, "DBG") || !strings.Contains(got, "busy time") {
		t.Fatalf("expected console debug line, got %q", got)
	}
}
