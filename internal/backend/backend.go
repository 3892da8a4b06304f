package backend

import (
	"context"
	"errors"
	"time"

	"github.com/agis/meetme/internal/availability"
	"github.com/agis/meetme/internal/contract"
)

var ErrNotFound = errors.New("not found")

// EventFilter bounds an event query to one calendar and an instant range.
type EventFilter struct {
	CalendarID string
	From       time.Time
	To         time.Time
}

// Backend is a calendar-data provider. Records come back raw: recurring
// events are returned once as a series and expanded with ListInstances.
type Backend interface {
	Doctor(context.Context) ([]contract.DoctorCheck, error)
	ListCalendars(context.Context) ([]contract.Calendar, error)
	ListEvents(context.Context, EventFilter) ([]availability.RawInstance, error)
	ListInstances(ctx context.Context, f EventFilter, eventID string) ([]availability.RawInstance, error)
	GetEvent(ctx context.Context, calendarID, eventID string) (*availability.RawInstance, error)
}
