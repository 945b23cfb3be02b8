package gateway

import (
	"errors"
	"fmt"
)

// Error codes raised by the gateway itself. Codes from the server's response
// envelope are passed through unchanged.
const (
	CodeConnectionErr    = "CONNECTION_ERR"
	CodeNoServerResponse = "NO_SERVER_RESPONSE_ERR"
)

// Sentinels for errors.Is. They match any *Error with the same code.
var (
	ErrConnection       = &Error{Code: CodeConnectionErr}
	ErrNoServerResponse = &Error{Code: CodeNoServerResponse}

	errAttemptsExhausted = errors.New("attempts exhausted")
)

// Error is a failed call.
type Error struct {
	Code        string
	Description string
	Err         error // Underlying cause, if any
}

func (e *Error) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func timeoutError(label, operation string, seconds, attempts int) *Error {
	return &Error{
		Code: CodeNoServerResponse,
		Description: fmt.Sprintf(
			"Failed to emit [%s/%s] or process response - Network or browser too busy - timed out after %d secs and %d attempt(s)",
			label, operation, seconds, attempts,
		),
	}
}

func exhaustedError(label, operation string, attempts int) *Error {
	return &Error{
		Code: CodeNoServerResponse,
		Description: fmt.Sprintf(
			"Failed to emit to [%s/%s] or process response - Made %d attempt(s)",
			label, operation, attempts,
		),
		Err: errAttemptsExhausted,
	}
}
