package signin

import (
	"errors"
	"fmt"
)

// ErrSubmissionInFlight is returned when a form already has a submission in progress.
var ErrSubmissionInFlight = errors.New("submission already in flight")

// CallbackError is reported back to the sign-in page as ?error=Code.
type CallbackError struct {
	Code string
	Err  error
}

func NewCallbackError(code string, err error) *CallbackError {
	return &CallbackError{Code: code, Err: err}
}

func (e *CallbackError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("callback error %s: %v", e.Code, e.Err)
	}
	return "callback error " + e.Code
}

func (e *CallbackError) Unwrap() error { return e.Err }

// AppError is reported through the shared error context.
type AppError struct {
	Name string
	// Message is optional detail shown only when Name has no mapping.
	Message string
	Err     error
}

func NewAppError(name string, err error) *AppError {
	return &AppError{Name: name, Err: err}
}

// NewAppErrorWithMessage carries a user-safe message. It is shown only when name
// has no entry in the application table.
func NewAppErrorWithMessage(name, message string, err error) *AppError {
	return &AppError{Name: name, Message: message, Err: err}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("application error %s: %v", e.Name, e.Err)
	}
	return "application error " + e.Name
}

func (e *AppError) Unwrap() error { return e.Err }

// Context converts the error into the value stored in the error context.
func (e *AppError) Context() *ErrorContext {
	return &ErrorContext{ErrorName: e.Name, ErrorMessage: e.Message}
}

// Classify turns any failure into either a callback code or an error context.
// Unknown failures become CodeUnexpected without their raw text.
func Classify(err error) (callbackCode string, ec *ErrorContext) {
	var cbErr *CallbackError
	if errors.As(err, &cbErr) {
		return cbErr.Code, nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return "", appErr.Context()
	}
	return "", &ErrorContext{ErrorName: CodeUnexpected}
}
