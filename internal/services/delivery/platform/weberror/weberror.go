// Package weberror defines the delivery service's typed request errors and
// renders their minimal HTTP responses.
package weberror

import (
	stderrors "errors"
	"net/http"
)

// Kind classifies request failures for consistent HTTP mapping.
type Kind string

const (
	KindUnknown    Kind = "unknown"
	KindBadRequest Kind = "bad_request"
	KindNotFound   Kind = "not_found"
	KindServer     Kind = "server_error"
)

// Error is a typed delivery failure.
type Error struct {
	Kind    Kind
	Message string
}

// Error renders the human-readable message.
func (e Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

// E builds a typed Error.
func E(kind Kind, message string) error {
	return Error{Kind: kind, Message: message}
}

// HTTPStatus maps an error to an HTTP status code.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var appErr Error
	if !stderrors.As(err, &appErr) {
		return http.StatusInternalServerError
	}
	switch appErr.Kind {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Write sends the minimal plain-text response for err. Bodies carry the
// status text and nothing else; details stay in the server log.
func Write(w http.ResponseWriter, err error) {
	if w == nil {
		return
	}
	status := HTTPStatus(err)
	http.Error(w, http.StatusText(status), status)
}
