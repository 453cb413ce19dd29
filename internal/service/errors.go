package service

import "errors"

// Error kinds. Match with errors.Is.
var (
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrAuth       = errors.New("authentication failed")
	ErrNotFound   = errors.New("not found")
	ErrUpstream   = errors.New("upstream error")
)

// Error is a classified failure carrying a message safe to show to clients.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// PublicMessage extracts the client-facing message of a classified error.
func PublicMessage(err error) (string, bool) {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Message, true
	}
	return "", false
}

func validationError(msg string) error { return &Error{Kind: ErrValidation, Message: msg} }
func conflictError(msg string) error   { return &Error{Kind: ErrConflict, Message: msg} }
func authError(msg string) error       { return &Error{Kind: ErrAuth, Message: msg} }
func notFoundError(msg string) error   { return &Error{Kind: ErrNotFound, Message: msg} }

func upstreamError(msg string, cause error) error {
	return &Error{Kind: ErrUpstream, Message: msg, Cause: cause}
}
