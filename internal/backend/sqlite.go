package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/agis/meetme/internal/availability"
	"github.com/agis/meetme/internal/contract"
)

// SnapshotSchema creates the tables read by SQLiteBackend. Timed events
// carry RFC 3339 instants, all-day events carry YYYY-MM-DD dates. exdates
// is a comma-separated list in the same shape as the start column.
var SnapshotSchema = []string{
	`CREATE TABLE IF NOT EXISTS calendars (
		id TEXT PRIMARY KEY,
		summary TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL DEFAULT '',
		is_primary INTEGER,
		selected INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		calendar_id TEXT NOT NULL,
		id TEXT NOT NULL,
		summary TEXT NOT NULL DEFAULT '',
		transparency TEXT NOT NULL DEFAULT 'opaque',
		start_date_time TEXT,
		end_date_time TEXT,
		start_date TEXT,
		end_date TEXT,
		rrule TEXT,
		exdates TEXT,
		PRIMARY KEY (calendar_id, id)
	)`,
}

var snapshotDBs sync.Map

// SQLiteBackend reads a local snapshot database.
type SQLiteBackend struct {
	path string
	loc  *time.Location
	log  zerolog.Logger
}

func NewSQLiteBackend(path string, loc *time.Location, log zerolog.Logger) *SQLiteBackend {
	if loc == nil {
		loc = time.Local
	}
	return &SQLiteBackend{path: path, loc: loc, log: log}
}

func snapshotDSN(path string) string {
	v := url.Values{}
	v.Set("mode", "ro")
	v.Add("_pragma", "busy_timeout(2000)")
	return "file:" + path + "?" + v.Encode()
}

func openSnapshotDB(path string) (*sql.DB, error) {
	if db, ok := snapshotDBs.Load(path); ok {
		return db.(*sql.DB), nil
	}
	db, err := sql.Open("sqlite", snapshotDSN(path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	actual, loaded := snapshotDBs.LoadOrStore(path, db)
	if loaded {
		_ = db.Close()
	}
	return actual.(*sql.DB), nil
}

func (b *SQLiteBackend) db() (*sql.DB, error) {
	if b.path == "" {
		return nil, errors.New("no snapshot database configured")
	}
	if _, err := os.Stat(b.path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("snapshot %s: %w", b.path, ErrNotFound)
		}
		return nil, err
	}
	return openSnapshotDB(b.path)
}

func (b *SQLiteBackend) Doctor(ctx context.Context) ([]contract.DoctorCheck, error) {
	db, err := b.db()
	if err != nil {
		return []contract.DoctorCheck{{
			Name:    "sqlite_db",
			Status:  "fail",
			Message: err.Error(),
			Hint:    "Set sqlite.path or run `meetme snapshot --out <file>`",
		}}, nil
	}
	checks := []contract.DoctorCheck{}
	if fi, err := os.Stat(b.path); err == nil {
		checks = append(checks, contract.DoctorCheck{
			Name:    "sqlite_db",
			Status:  "ok",
			Message: fmt.Sprintf("%s (%s)", b.path, humanize.Bytes(uint64(fi.Size()))),
		})
	}
	var calendars, events int64
	err = db.QueryRowContext(ctx, `SELECT (SELECT COUNT(*) FROM calendars), (SELECT COUNT(*) FROM events)`).Scan(&calendars, &events)
	if err != nil {
		return append(checks, contract.DoctorCheck{
			Name:    "sqlite_schema",
			Status:  "fail",
			Message: err.Error(),
		}), nil
	}
	return append(checks, contract.DoctorCheck{
		Name:    "sqlite_schema",
		Status:  "ok",
		Message: fmt.Sprintf("%s calendars, %s events", humanize.Comma(calendars), humanize.Comma(events)),
	}), nil
}

func (b *SQLiteBackend) ListCalendars(ctx context.Context) ([]contract.Calendar, error) {
	db, err := b.db()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT id, summary, kind, is_primary, selected FROM calendars ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list calendars: %w", err)
	}
	defer rows.Close()

	var out []contract.Calendar
	for rows.Next() {
		var c contract.Calendar
		var primary, selected sql.NullBool
		if err := rows.Scan(&c.ID, &c.Name, &c.Kind, &primary, &selected); err != nil {
			return nil, err
		}
		// NULL flags read as false.
		c.Primary = primary.Valid && primary.Bool
		c.Selected = selected.Valid && selected.Bool
		out = append(out, c)
	}
	return out, rows.Err()
}

func (b *SQLiteBackend) ListEvents(ctx context.Context, f EventFilter) ([]availability.RawInstance, error) {
	records, err := b.query(ctx, `WHERE calendar_id = ?`, f.CalendarID)
	if err != nil {
		return nil, err
	}
	var out []availability.RawInstance
	for _, s := range records {
		ok, err := s.inRange(f.From, f.To)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, s.raw())
		}
	}
	return out, nil
}

func (b *SQLiteBackend) ListInstances(ctx context.Context, f EventFilter, eventID string) ([]availability.RawInstance, error) {
	s, err := b.one(ctx, f.CalendarID, eventID)
	if err != nil {
		return nil, err
	}
	if !s.recurring() {
		return []availability.RawInstance{s.raw()}, nil
	}
	return s.occurrences(f.From, f.To)
}

func (b *SQLiteBackend) GetEvent(ctx context.Context, calendarID, eventID string) (*availability.RawInstance, error) {
	s, err := b.one(ctx, calendarID, eventID)
	if err != nil {
		return nil, err
	}
	raw := s.raw()
	return &raw, nil
}

func (b *SQLiteBackend) one(ctx context.Context, calendarID, eventID string) (series, error) {
	records, err := b.query(ctx, `WHERE calendar_id = ? AND id = ?`, calendarID, eventID)
	if err != nil {
		return series{}, err
	}
	if len(records) == 0 {
		return series{}, fmt.Errorf("event %s in %s: %w", eventID, calendarID, ErrNotFound)
	}
	return records[0], nil
}

func (b *SQLiteBackend) query(ctx context.Context, where string, args ...any) ([]series, error) {
	db, err := b.db()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT id, summary, transparency,
		start_date_time, end_date_time, start_date, end_date, rrule, exdates
		FROM events `+where+` ORDER BY rowid`, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []series
	for rows.Next() {
		var (
			s                                                 series
			transparency                                      string
			startDT, endDT, startDate, endDate, rule, exdates sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.Summary, &transparency, &startDT, &endDT, &startDate, &endDate, &rule, &exdates); err != nil {
			return nil, err
		}
		s.Transparent = transparency == "transparent"
		s.RRule = rule.String
		if err := b.fillTiming(&s, startDT, endDT, startDate, endDate); err != nil {
			return nil, fmt.Errorf("event %s: %w", s.ID, err)
		}
		for _, part := range strings.Split(exdates.String, ",") {
			if part = strings.TrimSpace(part); part == "" {
				continue
			}
			ex, err := b.parseStamp(part)
			if err != nil {
				return nil, fmt.Errorf("event %s: exdate: %w", s.ID, err)
			}
			s.ExDates = append(s.ExDates, ex)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (b *SQLiteBackend) fillTiming(s *series, startDT, endDT, startDate, endDate sql.NullString) error {
	switch {
	case startDT.Valid && endDT.Valid:
		start, err := time.Parse(time.RFC3339, startDT.String)
		if err != nil {
			return err
		}
		end, err := time.Parse(time.RFC3339, endDT.String)
		if err != nil {
			return err
		}
		s.HasTiming, s.Start, s.End = true, start, end
	case startDate.Valid && endDate.Valid:
		start, err := time.ParseInLocation(time.DateOnly, startDate.String, b.loc)
		if err != nil {
			return err
		}
		end, err := time.ParseInLocation(time.DateOnly, endDate.String, b.loc)
		if err != nil {
			return err
		}
		s.HasTiming, s.AllDay, s.Start, s.End = true, true, start, end
	}
	return nil
}

func (b *SQLiteBackend) parseStamp(v string) (time.Time, error) {
	if len(v) == len(time.DateOnly) {
		return time.ParseInLocation(time.DateOnly, v, b.loc)
	}
	return time.Parse(time.RFC3339, v)
}

// WriteSnapshot stores calendars and their already-expanded instances in a
// snapshot database at path, replacing earlier rows for those calendars.
func WriteSnapshot(ctx context.Context, path string, cals []contract.Calendar, fetched []availability.CalendarEvents) (int, error) {
	db, err := sql.Open("sqlite", "file:"+path)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	for _, stmt := range SnapshotSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return 0, fmt.Errorf("create schema: %w", err)
		}
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	for _, c := range cals {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO calendars (id, summary, kind, is_primary, selected) VALUES (?, ?, ?, ?, ?)`,
			c.ID, c.Name, c.Kind, c.Primary, c.Selected,
		); err != nil {
			return 0, fmt.Errorf("write calendar %s: %w", c.ID, err)
		}
	}

	written := 0
	for _, ce := range fetched {
		if ce.Err != nil {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE calendar_id = ?`, ce.CalendarID); err != nil {
			return 0, err
		}
		for _, ev := range ce.Events {
			if ev.Err != nil {
				continue
			}
			items := []availability.RawInstance{ev.RawInstance}
			if ev.Recurring {
				items = ev.Instances
			}
			for _, inst := range items {
				if err := insertInstance(ctx, tx, ce.CalendarID, inst); err != nil {
					return 0, err
				}
				written++
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	if cached, ok := snapshotDBs.LoadAndDelete(path); ok {
		_ = cached.(*sql.DB).Close()
	}
	return written, nil
}

func insertInstance(ctx context.Context, tx *sql.Tx, calendarID string, inst availability.RawInstance) error {
	var startDT, endDT, startDate, endDate sql.NullString
	switch t := inst.Timing.(type) {
	case availability.InstantSpan:
		startDT = sql.NullString{String: t.Start.Format(time.RFC3339), Valid: true}
		endDT = sql.NullString{String: t.End.Format(time.RFC3339), Valid: true}
	case availability.DateSpan:
		startDate = sql.NullString{String: t.Start.String(), Valid: true}
		endDate = sql.NullString{String: t.End.String(), Valid: true}
	}
	transparency := "opaque"
	if inst.Transparent {
		transparency = "transparent"
	}
	_, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO events (calendar_id, id, summary, transparency, start_date_time, end_date_time, start_date, end_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		calendarID, inst.ID, inst.Summary, transparency, startDT, endDT, startDate, endDate,
	)
	if err != nil {
		return fmt.Errorf("write event %s: %w", inst.ID, err)
	}
	return nil
}
