package transport

import "fmt"

// ErrorKind classifies a remote call failure.
type ErrorKind string

const (
	// KindTransport covers network failures with no usable response.
	KindTransport ErrorKind = "transport"
	// KindValidation covers requests the server rejected as malformed.
	KindValidation ErrorKind = "validation"
	// KindAuthorization covers invalid or expired sessions.
	KindAuthorization ErrorKind = "authorization"
	// KindApplication covers requests the server understood but refused,
	// e.g. a send rejected after the optimistic echo was already shown.
	KindApplication ErrorKind = "application"
)

// APIError is the error type for all remote call failures.
type APIError struct {
	Kind    ErrorKind
	Status  int // HTTP status, zero for transport failures
	Message string
	Err     error // underlying error, if any
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

func kindForStatus(status int) ErrorKind {
	switch {
	case status == 400:
		return KindValidation
	case status == 401 || status == 403:
		return KindAuthorization
	default:
		return KindApplication
	}
}
