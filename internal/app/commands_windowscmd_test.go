package app

import (
	"strings"
	"testing"

	"github.com/agis/meetme/internal/backend"
)

func TestWindowsCommand(t *testing.T) {
	out, _, err := runRoot("windows", "--dates", "05/12/2013 - 05/15/2013", "--begin", "9am", "--end", "5pm", "--tz", "UTC", "--json")
	if err != nil {
		t.Fatalf("windows failed: %v", err)
	}
	for _, want := range []string{
		"\"count\": 4",
		"\"begin\": \"2013-05-12T09:00:00Z\"",
		"\"end\": \"2013-05-15T17:00:00Z\"",
		"\"query_to\": \"2013-05-15T17:00:00Z\"",
		"\"all_day\": false",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in windows output: %q", want, out)
		}
	}
}

func TestWindowsWholeDaySentinel(t *testing.T) {
	out, _, err := runRoot("windows", "--dates", "05/12/2013 - 05/12/2013", "--begin", "00:00", "--end", "00:00", "--tz", "UTC", "--json")
	if err != nil {
		t.Fatalf("windows failed: %v", err)
	}
	if !strings.Contains(out, "\"all_day\": true") || !strings.Contains(out, "\"query_to\": \"2013-05-13T00:00:00Z\"") {
		t.Fatalf("unexpected sentinel output: %q", out)
	}
}

func TestWindowsPlain(t *testing.T) {
	out, _, err := runRoot("windows", "--dates", "05/13/2013 - 05/14/2013", "--begin", "1:30pm", "--end", "15:00", "--tz", "UTC", "--plain")
	if err != nil {
		t.Fatalf("windows failed: %v", err)
	}
	want := "Mon 05/13/2013 13:30-15:00\nTue 05/14/2013 13:30-15:00\n"
	if out != want {
		t.Fatalf("plain windows=%q want=%q", out, want)
	}
}

func TestWindowsNeedsNoBackend(t *testing.T) {
	origFactory := backendFactory
	backendFactory = func(*globalOptions) (backend.Backend, error) {
		t.Fatalf("windows must not open a backend")
		return nil, nil
	}
	t.Cleanup(func() { backendFactory = origFactory })

	if _, _, err := runRoot("windows", "--dates", "05/13/2013 - 05/13/2013", "--json"); err != nil {
		t.Fatalf("windows failed: %v", err)
	}
}
