package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/custodex/internal/domain"
)

// timeFormat renders every timestamp in a response: UTC, whole seconds.
const timeFormat = "2006-01-02T15:04:05Z"

var errInvalidBody = errors.New("Request body must be valid JSON with Content-Type: application/json")

// WriteJSON writes a JSON response with the given status code and data.
// Responses report live balances and order states, so none may be cached.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data) // the status line is already out
}

// errorResponse is the standard error response format.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a standard error response with the given status code,
// error code, and human-readable message.
func WriteError(w http.ResponseWriter, status int, errorCode, message string) {
	WriteJSON(w, status, errorResponse{
		Error:   errorCode,
		Message: message,
	})
}

// ParseJSON decodes a JSON request body into v, rejecting unknown fields
// and any content type other than application/json.
func ParseJSON(r *http.Request, v any) error {
	ct := r.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "application/json") {
		return errInvalidBody
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errInvalidBody
	}
	return nil
}

// readJSON parses the request body into v, answering 400 invalid_request
// and reporting false when it cannot.
func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := ParseJSON(r, v); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return false
	}
	return true
}

// units renders a base-unit amount in whole tokens, e.g. "7.8".
func units(amount decimal.Decimal) string {
	return domain.FormatUnits(amount)
}

// optionalUnits is units for amounts that only exist in some states.
func optionalUnits(amount decimal.Decimal, present bool) *string {
	if !present {
		return nil
	}
	s := units(amount)
	return &s
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func formatOptionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// canonical lowercases an address that already passed validation and
// returns anything else unchanged.
func canonical(s string) string {
	addr, err := domain.ParseAddress(s)
	if err != nil {
		return s
	}
	return addr.String()
}
