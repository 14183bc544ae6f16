package connerr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindConfiguration  Kind = "ConfigurationError"
	KindAuthentication Kind = "AuthenticationError"
	KindTransport      Kind = "TransportError"
	KindHTTPStatus     Kind = "HTTPStatusError"
	KindDecode         Kind = "DecodeError"
	KindValidation     Kind = "ValidationError"
)

// Error is the typed error carried by every failed Result. Op names the
// client operation, Key the record (project, metric) it concerned.
type Error struct {
	Kind   Kind
	Op     string
	Key    string
	Status int
	Body   string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Op)
	if e.Key != "" {
		msg += fmt.Sprintf(" [%s]", e.Key)
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(": HTTP %d", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Status builds the error for a non-2xx answer. The body is kept for
// diagnostics only.
func Status(op string, code int, body string) *Error {
	return &Error{Kind: KindHTTPStatus, Op: op, Status: code, Body: body}
}

func Invalid(op, key string, err error) *Error {
	return &Error{Kind: KindValidation, Op: op, Key: key, Err: err}
}

// WithKey returns a copy of err annotated with the affected record key.
func WithKey(err error, key string) error {
	var ce *Error
	if errors.As(err, &ce) {
		cp := *ce
		cp.Key = key
		return &cp
	}
	return fmt.Errorf("%s: %w", key, err)
}

// IsKind reports whether any error in err's chain is a connector error of
// the given kind.
func IsKind(err error, kind Kind) bool {
	var ce *Error
	for err != nil {
		if errors.As(err, &ce) {
			if ce.Kind == kind {
				return true
			}
			err = ce.Err
			continue
		}
		return false
	}
	return false
}
