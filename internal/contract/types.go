package contract

import "time"

const SchemaVersion = "v1"

type ErrorCode string

const (
	ErrGeneric            ErrorCode = "GENERIC_FAILURE"
	ErrInvalidUsage       ErrorCode = "INVALID_USAGE"
	ErrMalformedInput     ErrorCode = "MALFORMED_INPUT"
	ErrPermissionDenied   ErrorCode = "PERMISSION_DENIED"
	ErrNotFound           ErrorCode = "NOT_FOUND"
	ErrBackendUnavailable ErrorCode = "BACKEND_UNAVAILABLE"
)

type ErrorEnvelope struct {
	SchemaVersion string         `json:"schema_version"`
	Error         ErrorBody      `json:"error"`
	Meta          map[string]any `json:"meta,omitempty"`
}

type ErrorBody struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Hint    string    `json:"hint,omitempty"`
}

type SuccessEnvelope struct {
	SchemaVersion string         `json:"schema_version"`
	Command       string         `json:"command"`
	GeneratedAt   time.Time      `json:"generated_at"`
	Data          any            `json:"data"`
	Meta          map[string]any `json:"meta"`
	Warnings      []string       `json:"warnings"`
}

// Calendar is a provider calendar as shown in the selection list.
type Calendar struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Kind     string `json:"kind,omitempty"`
	Primary  bool   `json:"primary"`
	Selected bool   `json:"selected"`
}

// BusyInstance is a normalized event occurrence with concrete begin/end
// instants. All-day occurrences are already expanded to 00:00..23:59.
type BusyInstance struct {
	EventID    string    `json:"event_id"`
	CalendarID string    `json:"calendar_id,omitempty"`
	Summary    string    `json:"summary"`
	Begin      time.Time `json:"begin"`
	End        time.Time `json:"end"`
}

type DoctorCheck struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}
