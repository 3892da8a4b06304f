package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/agis/meetme/internal/availability"
	"github.com/agis/meetme/internal/contract"
)

// GoogleConfig points at an OAuth client secret and a token saved by an
// earlier authorization. Token refresh happens in memory only.
type GoogleConfig struct {
	CredentialsFile string
	TokenFile       string
}

type GoogleBackend struct {
	cfg GoogleConfig
	svc *calendar.Service
	cb  *gobreaker.CircuitBreaker
	log zerolog.Logger
}

func NewGoogleBackend(cfg GoogleConfig, log zerolog.Logger) *GoogleBackend {
	return &GoogleBackend{cfg: cfg, cb: newBreaker(log), log: log}
}

// NewGoogleBackendWithService wraps an already-built service.
func NewGoogleBackendWithService(svc *calendar.Service, log zerolog.Logger) *GoogleBackend {
	return &GoogleBackend{svc: svc, cb: newBreaker(log), log: log}
}

func newBreaker(log zerolog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "google-calendar",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			var ce *clientError
			return err == nil || errors.As(err, &ce)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})
}

// clientError carries API errors that say nothing about provider health.
type clientError struct{ err error }

func (e *clientError) Error() string { return e.err.Error() }
func (e *clientError) Unwrap() error { return e.err }

func (b *GoogleBackend) execute(op string, fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		if err := fn(); err != nil {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) && apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != http.StatusTooManyRequests {
				return nil, &clientError{err: err}
			}
			return nil, err
		}
		return nil, nil
	})
	var ce *clientError
	if errors.As(err, &ce) {
		err = ce.err
	}
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (b *GoogleBackend) service(ctx context.Context) (*calendar.Service, error) {
	if b.svc != nil {
		return b.svc, nil
	}
	conf, err := b.oauthConfig()
	if err != nil {
		return nil, err
	}
	tok, err := b.token()
	if err != nil {
		return nil, err
	}
	svc, err := calendar.NewService(ctx, option.WithHTTPClient(conf.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	b.svc = svc
	return svc, nil
}

func (b *GoogleBackend) oauthConfig() (*oauth2.Config, error) {
	if b.cfg.CredentialsFile == "" {
		return nil, errors.New("google.credentials is not set")
	}
	raw, err := os.ReadFile(b.cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	conf, err := google.ConfigFromJSON(raw, calendar.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return conf, nil
}

func (b *GoogleBackend) token() (*oauth2.Token, error) {
	if b.cfg.TokenFile == "" {
		return nil, errors.New("google.token is not set")
	}
	raw, err := os.ReadFile(b.cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	tok := &oauth2.Token{}
	if err := json.Unmarshal(raw, tok); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	return tok, nil
}

func (b *GoogleBackend) Doctor(ctx context.Context) ([]contract.DoctorCheck, error) {
	checks := []contract.DoctorCheck{}
	if b.svc != nil {
		checks = append(checks, contract.DoctorCheck{Name: "google_service", Status: "ok", Message: "service injected"})
	} else {
		if _, err := b.oauthConfig(); err != nil {
			checks = append(checks, contract.DoctorCheck{
				Name:    "google_credentials",
				Status:  "fail",
				Message: err.Error(),
				Hint:    "Download an OAuth client secret and set google.credentials",
			})
			return checks, nil
		}
		checks = append(checks, contract.DoctorCheck{Name: "google_credentials", Status: "ok", Message: b.cfg.CredentialsFile})

		tok, err := b.token()
		if err != nil {
			checks = append(checks, contract.DoctorCheck{
				Name:    "google_token",
				Status:  "fail",
				Message: err.Error(),
				Hint:    "Save an authorized token as JSON and set google.token",
			})
			return checks, nil
		}
		switch {
		case tok.Valid():
			checks = append(checks, contract.DoctorCheck{Name: "google_token", Status: "ok", Message: "token valid until " + tok.Expiry.Format(time.RFC3339)})
		case tok.RefreshToken != "":
			checks = append(checks, contract.DoctorCheck{Name: "google_token", Status: "ok", Message: "token expired, refresh token present"})
		default:
			checks = append(checks, contract.DoctorCheck{
				Name:    "google_token",
				Status:  "fail",
				Message: "token expired and has no refresh token",
				Hint:    "Re-authorize and save a new token",
			})
			return checks, nil
		}
	}

	if _, err := b.ListCalendars(ctx); err != nil {
		checks = append(checks, contract.DoctorCheck{Name: "google_api", Status: "fail", Message: err.Error()})
		return checks, nil
	}
	checks = append(checks, contract.DoctorCheck{Name: "google_api", Status: "ok", Message: "calendar list reachable"})
	return checks, nil
}

func (b *GoogleBackend) ListCalendars(ctx context.Context) ([]contract.Calendar, error) {
	svc, err := b.service(ctx)
	if err != nil {
		return nil, err
	}
	var out []contract.Calendar
	err = b.execute("calendarList.list", func() error {
		out = out[:0]
		return svc.CalendarList.List().Context(ctx).Pages(ctx, func(page *calendar.CalendarList) error {
			for _, item := range page.Items {
				out = append(out, convertCalendar(item))
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *GoogleBackend) ListEvents(ctx context.Context, f EventFilter) ([]availability.RawInstance, error) {
	svc, err := b.service(ctx)
	if err != nil {
		return nil, err
	}
	var out []availability.RawInstance
	err = b.execute("events.list "+f.CalendarID, func() error {
		out = out[:0]
		return svc.Events.List(f.CalendarID).
			TimeMin(f.From.Format(time.RFC3339)).
			TimeMax(f.To.Format(time.RFC3339)).
			Context(ctx).
			Pages(ctx, func(page *calendar.Events) error {
				for _, ev := range page.Items {
					out = append(out, b.convertEvent(ev))
				}
				return nil
			})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *GoogleBackend) ListInstances(ctx context.Context, f EventFilter, eventID string) ([]availability.RawInstance, error) {
	svc, err := b.service(ctx)
	if err != nil {
		return nil, err
	}
	var out []availability.RawInstance
	err = b.execute("events.instances "+eventID, func() error {
		out = out[:0]
		return svc.Events.Instances(f.CalendarID, eventID).
			TimeMin(f.From.Format(time.RFC3339)).
			TimeMax(f.To.Format(time.RFC3339)).
			Context(ctx).
			Pages(ctx, func(page *calendar.Events) error {
				for _, ev := range page.Items {
					out = append(out, b.convertEvent(ev))
				}
				return nil
			})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *GoogleBackend) GetEvent(ctx context.Context, calendarID, eventID string) (*availability.RawInstance, error) {
	svc, err := b.service(ctx)
	if err != nil {
		return nil, err
	}
	var ev *calendar.Event
	err = b.execute("events.get "+eventID, func() error {
		var err error
		ev, err = svc.Events.Get(calendarID, eventID).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	raw := b.convertEvent(ev)
	return &raw, nil
}

func convertCalendar(item *calendar.CalendarListEntry) contract.Calendar {
	name := item.SummaryOverride
	if name == "" {
		name = item.Summary
	}
	return contract.Calendar{
		ID:       item.Id,
		Name:     name,
		Kind:     item.Kind,
		Primary:  item.Primary,
		Selected: item.Selected,
	}
}

// convertEvent maps an API event onto the raw shape. Unreadable timestamps
// leave Timing unset so the pipeline rejects the record.
func (b *GoogleBackend) convertEvent(ev *calendar.Event) availability.RawInstance {
	raw := availability.RawInstance{
		ID:          ev.Id,
		Summary:     ev.Summary,
		Transparent: ev.Transparency == "transparent",
		Recurring:   len(ev.Recurrence) > 0,
	}
	if ev.Start == nil || ev.End == nil {
		return raw
	}
	switch {
	case ev.Start.DateTime != "" && ev.End.DateTime != "":
		start, err1 := time.Parse(time.RFC3339, ev.Start.DateTime)
		end, err2 := time.Parse(time.RFC3339, ev.End.DateTime)
		if err := errors.Join(err1, err2); err != nil {
			b.log.Warn().Err(err).Str("event", ev.Id).Msg("unreadable event instants")
			return raw
		}
		raw.Timing = availability.InstantSpan{Start: start, End: end}
	case ev.Start.Date != "" && ev.End.Date != "":
		start, err1 := availability.ParseDate(ev.Start.Date)
		end, err2 := availability.ParseDate(ev.End.Date)
		if err := errors.Join(err1, err2); err != nil {
			b.log.Warn().Err(err).Str("event", ev.Id).Msg("unreadable event dates")
			return raw
		}
		raw.Timing = availability.DateSpan{Start: start, End: end}
	}
	return raw
}
