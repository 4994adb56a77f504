package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/custodex/internal/domain"
)

func TestWriteJSON(t *testing.T) {
	type resp struct {
		OrderID uint64  `json:"order_id"`
		Fee     *string `json:"fee"`
	}
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusCreated, resp{OrderID: 7})

	if w.Code != http.StatusCreated {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if got := w.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want %q", got, "application/json")
	}
	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want %q", got, "no-store")
	}

	var raw map[string]any
	if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if raw["order_id"] != float64(7) {
		t.Errorf("order_id = %v, want 7", raw["order_id"])
	}
	if v, ok := raw["fee"]; !ok || v != nil {
		t.Errorf("fee = %v (present %v), want null", v, ok)
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, http.StatusConflict, "already_filled", "Order is already filled")

	if w.Code != http.StatusConflict {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusConflict)
	}
	var resp errorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if resp.Error != "already_filled" || resp.Message != "Order is already filled" {
		t.Errorf("got %+v", resp)
	}
}

func TestReadJSON(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantOK      bool
	}{
		{"custody request", "application/json", `{"user":"0xabc","amount":"1.5"}`, true},
		{"charset suffix", "application/json; charset=utf-8", `{"user":"0xabc"}`, true},
		{"missing content type", "", `{"user":"0xabc"}`, false},
		{"form encoded", "application/x-www-form-urlencoded", `user=0xabc`, false},
		{"malformed", "application/json", `{"user":`, false},
		{"unknown field", "application/json", `{"user":"0xabc","price":"2"}`, false},
		{"empty body", "application/json", ``, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/deposits", strings.NewReader(tt.body))
			if tt.contentType != "" {
				r.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()

			var req struct {
				User   string `json:"user"`
				Amount string `json:"amount"`
			}
			ok := readJSON(w, r, &req)
			if ok != tt.wantOK {
				t.Fatalf("readJSON = %v, want %v", ok, tt.wantOK)
			}
			if ok {
				if req.User != "0xabc" {
					t.Errorf("user = %q, want %q", req.User, "0xabc")
				}
				return
			}

			if w.Code != http.StatusBadRequest {
				t.Errorf("status code = %d, want %d", w.Code, http.StatusBadRequest)
			}
			var resp errorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode: %v", err)
			}
			if resp.Error != "invalid_request" || !strings.Contains(resp.Message, "Content-Type") {
				t.Errorf("got %+v", resp)
			}
		})
	}
}

func TestUnits(t *testing.T) {
	if got := units(decimal.New(78, 17)); got != "7.8" {
		t.Errorf("units = %q, want %q", got, "7.8")
	}
	if got := optionalUnits(decimal.New(1, 18), false); got != nil {
		t.Errorf("optionalUnits for an absent amount = %q, want nil", *got)
	}
	if got := optionalUnits(decimal.New(1, 18), true); got == nil || *got != "1" {
		t.Errorf("optionalUnits = %v, want \"1\"", got)
	}
}

func TestFormatTime(t *testing.T) {
	at := time.Date(2026, 3, 1, 14, 30, 5, 999, time.FixedZone("BRT", -3*3600))
	if got := formatTime(at); got != "2026-03-01T17:30:05Z" {
		t.Errorf("formatTime = %q", got)
	}
	if got := formatOptionalTime(nil); got != nil {
		t.Errorf("formatOptionalTime(nil) = %q, want nil", *got)
	}
	if got := formatOptionalTime(&at); got == nil || *got != "2026-03-01T17:30:05Z" {
		t.Errorf("formatOptionalTime = %v", got)
	}
}

func TestCanonical(t *testing.T) {
	addr := domain.DeriveAddress([]byte("alice")).String()
	if got := canonical("0x" + strings.ToUpper(addr[2:])); got != addr {
		t.Errorf("canonical = %q, want %q", got, addr)
	}
	if got := canonical("not-an-address"); got != "not-an-address" {
		t.Errorf("canonical changed an invalid address to %q", got)
	}
}

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", &domain.ValidationError{Message: "amount is required"}, http.StatusBadRequest, "validation_error"},
		{"invalid recipient", domain.ErrInvalidRecipient, http.StatusBadRequest, "invalid_recipient"},
		{"unallocated order id", domain.ErrInvalidOrderID, http.StatusNotFound, "order_not_found"},
		{"unauthorized", domain.ErrUnauthorized, http.StatusForbidden, "unauthorized"},
		{"already filled", domain.ErrAlreadyFilled, http.StatusConflict, "already_filled"},
		{"already cancelled", domain.ErrAlreadyCancelled, http.StatusConflict, "already_cancelled"},
		{"custody", domain.ErrInsufficientCustodyBalance, http.StatusConflict, "insufficient_custody_balance"},
		{"wrapped allowance", fmt.Errorf("transfer: %w", domain.ErrInsufficientAllowance), http.StatusConflict, "insufficient_allowance"},
		{"token not found", domain.ErrTokenNotFound, http.StatusNotFound, "token_not_found"},
		{"webhook not found", domain.ErrWebhookNotFound, http.StatusNotFound, "webhook_not_found"},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeServiceError(w, tt.err)

			if w.Code != tt.wantStatus {
				t.Errorf("status code = %d, want %d", w.Code, tt.wantStatus)
			}
			var resp errorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode: %v", err)
			}
			if resp.Error != tt.wantCode {
				t.Errorf("error = %q, want %q", resp.Error, tt.wantCode)
			}
			if resp.Message == "" {
				t.Error("expected a message")
			}
		})
	}
}
