package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/agis/meetme/internal/availability"
	"github.com/agis/meetme/internal/contract"
)

type Mode string

const (
	ModeAuto  Mode = "auto"
	ModeJSON  Mode = "json"
	ModeJSONL Mode = "jsonl"
	ModePlain Mode = "plain"
)

const (
	dayLayout   = "Mon 01/02/2006"
	clockLayout = "15:04"
)

type Printer struct {
	Mode          Mode
	Command       string
	Fields        []string
	Quiet         bool
	SchemaVersion string
	Out           io.Writer
	Err           io.Writer
}

func (p Printer) out() io.Writer {
	if p.Out == nil {
		return os.Stdout
	}
	return p.Out
}

func (p Printer) err() io.Writer {
	if p.Err == nil {
		return os.Stderr
	}
	return p.Err
}

// EffectiveSuccessMode resolves auto mode: plain on a terminal, JSON when
// piped.
func (p Printer) EffectiveSuccessMode() Mode {
	if p.Mode != ModeAuto && p.Mode != "" {
		return p.Mode
	}
	if f, ok := p.out().(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return ModePlain
	}
	return ModeJSON
}

func (p Printer) Success(data any, meta map[string]any, warnings []string) error {
	switch p.EffectiveSuccessMode() {
	case ModeJSON:
		if warnings == nil {
			warnings = []string{}
		}
		env := contract.SuccessEnvelope{
			SchemaVersion: p.schemaVersion(),
			Command:       p.Command,
			GeneratedAt:   time.Now().UTC(),
			Data:          data,
			Meta:          meta,
			Warnings:      warnings,
		}
		enc := json.NewEncoder(p.out())
		enc.SetIndent("", "  ")
		return enc.Encode(env)
	case ModeJSONL:
		v := reflect.ValueOf(data)
		if v.IsValid() && v.Kind() == reflect.Slice {
			enc := json.NewEncoder(p.out())
			for i := 0; i < v.Len(); i++ {
				if err := enc.Encode(v.Index(i).Interface()); err != nil {
					return err
				}
			}
			return nil
		}
		return json.NewEncoder(p.out()).Encode(data)
	default:
		for _, w := range warnings {
			_, _ = fmt.Fprintf(p.err(), "warning: %s\n", w)
		}
		return p.printPlain(data)
	}
}

func (p Printer) Error(code contract.ErrorCode, message, hint string) error {
	return p.ErrorWithMeta(code, message, hint, nil)
}

// ErrorWithMeta is Error with a meta object on the JSON envelope. Plain mode
// ignores meta.
func (p Printer) ErrorWithMeta(code contract.ErrorCode, message, hint string, meta map[string]any) error {
	if p.Mode == ModeJSON || p.Mode == ModeJSONL {
		env := contract.ErrorEnvelope{
			SchemaVersion: p.schemaVersion(),
			Error:         contract.ErrorBody{Code: code, Message: message, Hint: hint},
			Meta:          meta,
		}
		enc := json.NewEncoder(p.err())
		enc.SetIndent("", "  ")
		return enc.Encode(env)
	}
	if hint != "" {
		_, _ = fmt.Fprintf(p.err(), "error: %s\nhint: %s\n", message, hint)
		return nil
	}
	_, _ = fmt.Fprintf(p.err(), "error: %s\n", message)
	return nil
}

func (p Printer) schemaVersion() string {
	if p.SchemaVersion == "" {
		return contract.SchemaVersion
	}
	return p.SchemaVersion
}

func (p Printer) printPlain(data any) error {
	v := reflect.ValueOf(data)
	if !v.IsValid() || (v.Kind() == reflect.Slice && v.Len() == 0) {
		if !p.Quiet {
			_, _ = fmt.Fprintln(p.out(), "no results")
		}
		return nil
	}
	if v.Kind() == reflect.Slice {
		for i := 0; i < v.Len(); i++ {
			if _, err := fmt.Fprintln(p.out(), p.line(v.Index(i).Interface())); err != nil {
				return err
			}
		}
		return nil
	}
	_, err := fmt.Fprintln(p.out(), p.line(data))
	return err
}

func (p Printer) line(v any) string {
	if len(p.Fields) > 0 {
		return flatten(v, p.Fields)
	}
	switch x := v.(type) {
	case contract.BusyInstance:
		return FormatBusy(x)
	case contract.Calendar:
		return formatCalendar(x)
	case availability.DailyWindow:
		return FormatSpan(x.Begin, x.End)
	case contract.DoctorCheck:
		s := fmt.Sprintf("[%s] %s: %s", x.Status, x.Name, x.Message)
		if x.Hint != "" {
			s += " (" + x.Hint + ")"
		}
		return s
	}
	return flatten(v, nil)
}

// FormatSpan renders "Wed 05/12/2016 09:00-10:00", repeating the day when
// the span crosses midnight.
func FormatSpan(begin, end time.Time) string {
	end = end.In(begin.Location())
	s := begin.Format(dayLayout) + " " + begin.Format(clockLayout) + "-"
	if by, bm, bd := begin.Date(); !sameDay(by, bm, bd, end) {
		s += end.Format(dayLayout) + " "
	}
	return s + end.Format(clockLayout)
}

// FormatBusy renders a busy instance as "Wed 05/12/2016 09:00-10:00 summary".
func FormatBusy(b contract.BusyInstance) string {
	s := FormatSpan(b.Begin, b.End)
	if b.Summary != "" {
		s += " " + b.Summary
	}
	return s
}

func sameDay(y int, m time.Month, d int, t time.Time) bool {
	ty, tm, td := t.Date()
	return y == ty && m == tm && d == td
}

func formatCalendar(c contract.Calendar) string {
	var flags []string
	if c.Primary {
		flags = append(flags, "primary")
	}
	if c.Selected {
		flags = append(flags, "selected")
	}
	return strings.Join([]string{c.ID, c.Name, strings.Join(flags, ",")}, "\t")
}

func flatten(v any, fields []string) string {
	if len(fields) == 0 {
		b, _ := json.Marshal(v)
		return string(b)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		b, _ := json.Marshal(v)
		return string(b)
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		fv := rv.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, strings.ReplaceAll(f, "_", "")) || strings.EqualFold(name, f)
		})
		if !fv.IsValid() {
			parts = append(parts, "")
			continue
		}
		if t, ok := fv.Interface().(time.Time); ok {
			parts = append(parts, t.Format(time.RFC3339))
			continue
		}
		parts = append(parts, fmt.Sprint(fv.Interface()))
	}
	return strings.Join(parts, "\t")
}
