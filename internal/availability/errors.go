package availability

import "fmt"

// MalformedInputError reports a provider record or request value that breaks
// its shape or ordering invariant. It is not recoverable: callers surface it
// as a hard failure.
type MalformedInputError struct {
	Field  string
	Reason string
}

func (e *MalformedInputError) Error() string {
	if e == nil {
		return "malformed input"
	}
	if e.Field == "" {
		return "malformed input: " + e.Reason
	}
	return fmt.Sprintf("malformed %s: %s", e.Field, e.Reason)
}

func malformed(field, format string, args ...any) error {
	return &MalformedInputError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
