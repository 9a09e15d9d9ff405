package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"khata/internal/core"
	"khata/internal/log"
)

const maxBodySize = 1 << 20 // 1 MiB

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		writeErrorStatus(w, http.StatusInternalServerError, "encode response")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func writeRawJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

// writeError maps domain error categories onto HTTP status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrPersistence):
		status = http.StatusServiceUnavailable
	}

	logger := log.FromContext(r.Context()).WithComponent(log.ComponentHTTP)
	if status >= 500 {
		logger.ErrorContext(r.Context(), "Request failed",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, status,
			log.FieldError, err)
		// Persistence details stay in the log, not on the wire.
		writeErrorStatus(w, status, "internal error")
		return
	}

	logger.WarnContext(r.Context(), "Request rejected",
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path,
		log.FieldStatusCode, status,
		log.FieldError, err)
	writeErrorStatus(w, status, err.Error())
}

func writeErrorStatus(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: msg})
}

// readJSON decodes a bounded request body, rejecting unknown fields.
func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", core.ErrValidation, err)
	}
	return nil
}

// parseDate accepts YYYY-MM-DD; empty means today.
func parseDate(value string) (core.Date, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return core.Today(), nil
	}
	d, err := core.ParseDate(value)
	if err != nil {
		return core.Date{}, fmt.Errorf("%w: invalid date %q", core.ErrValidation, value)
	}
	return d, nil
}

func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
