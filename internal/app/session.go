package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/agis/meetme/internal/availability"
)

// sessionFile is a saved busy query in the same text forms the flags
// accept. JSON files decode too, since YAML is a superset.
type sessionFile struct {
	Dates       string   `yaml:"dates,omitempty"`
	From        string   `yaml:"from,omitempty"`
	To          string   `yaml:"to,omitempty"`
	Begin       string   `yaml:"begin,omitempty"`
	End         string   `yaml:"end,omitempty"`
	Calendars   []string `yaml:"calendars,omitempty"`
	ClipToRange bool     `yaml:"clip_to_range,omitempty"`
}

func loadSession(path string) (sessionFile, error) {
	raw, err := os.ReadFile(expandHome(path))
	if err != nil {
		return sessionFile{}, usageErrorf("read session %s: %v", path, err)
	}
	var s sessionFile
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return sessionFile{}, usageErrorf("parse session %s: %v", path, err)
	}
	return s, nil
}

func sessionFromRequest(req availability.Request) sessionFile {
	return sessionFile{
		Dates:       req.Range.Start.Format("01/02/2006") + " - " + req.Range.End.Format("01/02/2006"),
		Begin:       req.Window.Start.String(),
		End:         req.Window.End.String(),
		Calendars:   req.Calendars,
		ClipToRange: req.ClipToRange,
	}
}

func saveSession(path string, req availability.Request) error {
	path = expandHome(path)
	raw, err := yaml.Marshal(sessionFromRequest(req))
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// overlay copies every value set in top onto s. Setting either form of the
// date range on top clears the other form inherited from s.
func (s sessionFile) overlay(top sessionFile) sessionFile {
	if top.Dates != "" {
		s.Dates, s.From, s.To = top.Dates, "", ""
	}
	if top.From != "" || top.To != "" {
		s.Dates = ""
		if top.From != "" {
			s.From = top.From
		}
		if top.To != "" {
			s.To = top.To
		}
	}
	if strings.TrimSpace(top.Begin) != "" {
		s.Begin = top.Begin
	}
	if strings.TrimSpace(top.End) != "" {
		s.End = top.End
	}
	if len(top.Calendars) > 0 {
		s.Calendars = top.Calendars
	}
	s.ClipToRange = s.ClipToRange || top.ClipToRange
	return s
}
