package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"fpolysms.io/internal/auth"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

// decodeJSON reads the request body into dst. Body size is capped by
// the MaxBodyBytes middleware, so no limit is applied here.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// httpStatus maps service error statuses onto HTTP codes.
func httpStatus(s auth.Status) int {
	switch s {
	case auth.StatusBadRequest:
		return http.StatusBadRequest
	case auth.StatusUnauthorized:
		return http.StatusUnauthorized
	case auth.StatusForbidden:
		return http.StatusForbidden
	case auth.StatusNotFound:
		return http.StatusNotFound
	case auth.StatusConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError translates a status-coded service error into an HTTP
// response. Internal failures are masked with a generic message.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := httpStatus(auth.StatusOf(err))
	msg := err.Error()
	if code == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeError(w, r, code, msg)
}
