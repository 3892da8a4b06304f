package app

import (
	"errors"
	"fmt"

	"github.com/sony/gobreaker"

	"github.com/agis/meetme/internal/availability"
	"github.com/agis/meetme/internal/backend"
	"github.com/agis/meetme/internal/contract"
	"github.com/agis/meetme/internal/output"
	"github.com/agis/meetme/internal/timeparse"
)

type AppError struct {
	Code    int
	Err     error
	Printed bool
}

func (e AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit code %d", e.Code)
	}
	return e.Err.Error()
}

func (e AppError) Unwrap() error { return e.Err }

func Wrap(code int, err error) error {
	if err == nil {
		return nil
	}
	return AppError{Code: code, Err: err}
}

func WrapPrinted(code int, err error) error {
	if err == nil {
		return nil
	}
	return AppError{Code: code, Err: err, Printed: true}
}

func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var e AppError
	if errors.As(err, &e) {
		return e.Code
	}
	return 1
}

// usageError marks flag or session input the command cannot act on.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usageErrorf(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// fetchFailedError reports that none of the requested calendars could be
// read. It classifies as a backend failure whatever the first cause was.
type fetchFailedError struct {
	count int
	first error
}

func (e *fetchFailedError) Error() string {
	return fmt.Sprintf("all %d calendars failed, first: %v", e.count, e.first)
}

func (e *fetchFailedError) Unwrap() error { return e.first }

// classify maps an error onto an exit code and envelope code.
func classify(err error) (int, contract.ErrorCode) {
	var ue *usageError
	var pe *timeparse.ParseError
	var mi *availability.MalformedInputError
	var ff *fetchFailedError
	switch {
	case errors.As(err, &ue), errors.As(err, &pe):
		return 2, contract.ErrInvalidUsage
	case errors.As(err, &mi):
		return 2, contract.ErrMalformedInput
	case errors.As(err, &ff):
		return 6, contract.ErrBackendUnavailable
	case errors.Is(err, backend.ErrNotFound):
		return 4, contract.ErrNotFound
	default:
		return 6, contract.ErrBackendUnavailable
	}
}

// fail prints err once in the active output mode and returns it wrapped
// with its exit code.
func fail(p output.Printer, err error, hint string) error {
	code, ec := classify(err)
	if hint == "" {
		hint = hintFor(err)
	}
	_ = p.ErrorWithMeta(ec, err.Error(), hint, backendErrorMeta(err))
	return WrapPrinted(code, err)
}

func hintFor(err error) string {
	var pe *timeparse.ParseError
	switch {
	case errors.As(err, &pe):
		return "Dates look like 05/12/2013, ranges like \"05/12/2013 - 05/15/2013\", times like 9am or 13:30"
	case errors.Is(err, gobreaker.ErrOpenState):
		return "The provider kept failing; wait a few seconds and retry"
	case errors.Is(err, backend.ErrNotFound):
		return "Run `meetme calendars` to see available calendar ids"
	default:
		return ""
	}
}
