package utils

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the body of every error reply. Detail mirrors the field
// existing clients of the API already read.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Detail string            `json:"detail,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return nil
	}

	return json.NewEncoder(w).Encode(data)
}

// WriteOK writes data as a 200 response
func WriteOK(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteCreated writes data as a 201 response
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteBadRequest writes a 400 response
func WriteBadRequest(w http.ResponseWriter, detail string) error {
	return WriteError(w, http.StatusBadRequest, detail, nil)
}

// WriteValidationFailed writes a 422 response listing the offending fields
func WriteValidationFailed(w http.ResponseWriter, detail string, fields map[string]string) error {
	return WriteError(w, http.StatusUnprocessableEntity, detail, fields)
}

// WriteUnauthorized writes a 401 response carrying the bearer challenge
func WriteUnauthorized(w http.ResponseWriter, detail string) error {
	if detail == "" {
		detail = "Authentication required"
	}
	w.Header().Set("WWW-Authenticate", "Bearer")
	return WriteError(w, http.StatusUnauthorized, detail, nil)
}

// WriteNotFound writes a 404 response
func WriteNotFound(w http.ResponseWriter, detail string) error {
	if detail == "" {
		detail = "Resource not found"
	}
	return WriteError(w, http.StatusNotFound, detail, nil)
}

// WriteInternalServerError writes a 500 response
func WriteInternalServerError(w http.ResponseWriter, detail string) error {
	if detail == "" {
		detail = "Internal server error"
	}
	return WriteError(w, http.StatusInternalServerError, detail, nil)
}

// WriteServiceUnavailable writes a 503 response
func WriteServiceUnavailable(w http.ResponseWriter, detail string) error {
	return WriteError(w, http.StatusServiceUnavailable, detail, nil)
}

// WriteError writes an error response with a code derived from status
func WriteError(w http.ResponseWriter, status int, detail string, fields map[string]string) error {
	return WriteJSON(w, status, ErrorResponse{
		Error:  errorCode(status),
		Detail: detail,
		Fields: fields,
	})
}

func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusServiceUnavailable:
		return "unavailable"
	default:
		return "internal_error"
	}
}
