package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// EVERY response from this API — success or failure — uses one envelope:
//
//	{"success": true,  "data": ..., "total": 4,
//	 "pagination": {"limit":20,"offset":0,"count":4}, "message": "..."}
//	{"success": false, "error": "not_found", "message": "puzzle not found with id abc12345"}
//
// The frontend always knows what fields to expect, regardless of whether
// it's a 200, 404, or 500.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/pips-puzzles/internal/apperror"
)

// Pagination describes the page a list response covers. Count is how many
// items this page actually holds (the last page is usually short).
type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
}

// Response is the envelope every endpoint returns.
// Total and Pagination only appear on list responses; Error only on failures.
type Response struct {
	Success    bool        `json:"success"`
	Data       any         `json:"data,omitempty"`
	Total      *int        `json:"total,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Message    string      `json:"message"`
	Error      string      `json:"error,omitempty"`
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// You MUST set headers and status code BEFORE writing the body.
// Once you call w.Write() (which Encode does internally), the headers are sent.
// Any header changes after that are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// If encoding fails, the headers are already sent — we can only log it.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeSuccess sends a success envelope with just data and a message.
func writeSuccess(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, Response{
		Success: true,
		Data:    data,
		Message: message,
	})
}

// writeList sends a success envelope for a paginated list: the page itself,
// the overall total, and the pagination block describing this page.
func writeList(w http.ResponseWriter, data any, total, limit, offset, count int, message string) {
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    data,
		Total:   &total,
		Pagination: &Pagination{
			Limit:  limit,
			Offset: offset,
			Count:  count,
		},
		Message: message,
	})
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// ERROR MAPPING:
// This is where domain errors (from the service layer) get translated to HTTP.
// The service layer returns apperror.ErrValidation, apperror.ErrNotFound, etc.
// This function maps those to 400, 404, etc.
//
// WHY HERE AND NOT IN THE SERVICE?
// The service layer should not know about HTTP status codes. A different
// consumer (CLI tool, gRPC) would map the same domain errors differently.
//
// errors.Is() walks the entire error chain (via Unwrap()) to see if the
// sentinel appears anywhere, so wrapping with %w along the way doesn't hide it.
func writeError(w http.ResponseWriter, err error) {
	// errors.As() walks the chain and fills appErr if it finds an *AppError.
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		// We have a typed application error — map it to HTTP
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest // 400
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized // 401
			errorType = "unauthorized"
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden // 403
			errorType = "forbidden"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound // 404
			errorType = "not_found"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict // 409
			errorType = "conflict"
		}

		writeJSON(w, status, Response{
			Success: false,
			Error:   errorType,
			Message: appErr.Message,
		})
		return
	}

	// Unknown error — return a generic 500.
	// NEVER expose internal error details to the client: the raw message
	// might contain SQL text, file paths, or other sensitive info. The full
	// error was already logged server-side where it happened.
	writeJSON(w, http.StatusInternalServerError, Response{
		Success: false,
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}
