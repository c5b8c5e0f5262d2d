package api

import (
	"encoding/json"
	"net/http"
)

// Error is the body of every non-2xx JSON response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"error"`

	// CurrentStatus is set when a gadget is frozen in a terminal status.
	CurrentStatus string `json:"currentStatus,omitempty"`
}

// Machine-readable values of Error.Code.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeForbidden    = "forbidden"
	ErrCodeInternal     = "internal_error"
	ErrCodeValidation   = "validation_error"
	ErrCodeUnavailable  = "service_unavailable"
)

var codeByStatus = map[int]string{
	http.StatusBadRequest:          ErrCodeBadRequest,
	http.StatusUnauthorized:        ErrCodeUnauthorized,
	http.StatusForbidden:           ErrCodeForbidden,
	http.StatusNotFound:            ErrCodeNotFound,
	http.StatusInternalServerError: ErrCodeInternal,
	http.StatusServiceUnavailable:  ErrCodeUnavailable,
}

// respond encodes v as the JSON body. A nil v writes headers only.
func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	//nolint:errcheck // the client may already be gone
	json.NewEncoder(w).Encode(v)
}

// fail writes an Error whose code follows from status.
func fail(w http.ResponseWriter, status int, msg string) {
	failWith(w, Error{Status: status, Message: msg})
}

// invalid reports a request that parsed but broke a field rule.
func invalid(w http.ResponseWriter, msg string) {
	failWith(w, Error{Status: http.StatusBadRequest, Code: ErrCodeValidation, Message: msg})
}

func failWith(w http.ResponseWriter, e Error) {
	if e.Code == "" {
		e.Code = codeByStatus[e.Status]
	}
	respond(w, e.Status, e)
}
