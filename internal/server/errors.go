package server

import (
	"errors"
	"log"
	"net/http"
)

// Kind classifies a domain error so callers and the boundary responder
// can branch on it without string matching.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindConflict
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindTooManyRequests
	KindDependency
)

func (k Kind) status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	case KindDependency:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is an operational error safe to render to the client. Anything
// that is not an *Error collapses to a generic 500 at the boundary.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func badRequest(msg string) *Error   { return &Error{Kind: KindValidation, Message: msg} }
func conflict(msg string) *Error     { return &Error{Kind: KindConflict, Message: msg} }
func unauthorized(msg string) *Error { return &Error{Kind: KindAuthentication, Message: msg} }
func forbidden(msg string) *Error    { return &Error{Kind: KindAuthorization, Message: msg} }
func notFound(msg string) *Error     { return &Error{Kind: KindNotFound, Message: msg} }
func tooManyRequests(msg string) *Error {
	return &Error{Kind: KindTooManyRequests, Message: msg}
}
func dependency(msg string, err error) *Error {
	return &Error{Kind: KindDependency, Message: msg, Err: err}
}

// fail is the single error boundary: operational errors render their kind
// and message, unknown errors are logged and hidden behind a generic 500.
// Development mode includes the underlying error detail.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		log.Printf("%s %s: unexpected error: %v", r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"message": "Something went wrong",
		})
		return
	}

	status := apiErr.Kind.status()
	body := map[string]interface{}{
		"status":  statusWord(status),
		"message": apiErr.Message,
	}
	if !s.Config.Production() && apiErr.Err != nil {
		body["error"] = apiErr.Err.Error()
	}
	if apiErr.Err != nil {
		log.Printf("%s %s: %v", r.Method, r.URL.Path, apiErr)
	}
	writeJSON(w, status, body)
}

func statusWord(status int) string {
	if status >= 500 {
		return "error"
	}
	return "fail"
}
