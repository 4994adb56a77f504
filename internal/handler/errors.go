package handler

import (
	"errors"
	"net/http"

	"github.com/efreitasn/custodex/internal/domain"
)

// AccountHeader identifies the caller of a state-changing request.
const AccountHeader = "X-Account"

func callerFrom(r *http.Request) string {
	return r.Header.Get(AccountHeader)
}

// errorMessages holds the human-readable message for each sentinel error.
var errorMessages = map[error]string{
	domain.ErrInvalidRecipient:           "Recipient must not be the null address",
	domain.ErrInvalidSpender:             "Spender must not be the null address",
	domain.ErrInvalidToken:               "Token must not be the null address",
	domain.ErrInvalidOrderID:             "Order not found",
	domain.ErrInvalidAmount:              "Amount must be a non-negative whole number of base units",
	domain.ErrUnauthorized:               "Caller is not allowed to perform this operation",
	domain.ErrAlreadyFilled:              "Order is already filled",
	domain.ErrAlreadyCancelled:           "Order is already cancelled",
	domain.ErrInsufficientBalance:        "Insufficient token balance",
	domain.ErrInsufficientAllowance:      "Insufficient allowance",
	domain.ErrInsufficientCustodyBalance: "Insufficient exchange balance",
	domain.ErrTokenNotFound:              "Token not found",
	domain.ErrWebhookNotFound:            "Webhook not found",
}

// writeServiceError maps a service error to an HTTP response: the status
// comes from the error's category and the code from the sentinel.
func writeServiceError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	// An id that was never allocated is an unknown order to HTTP callers.
	if errors.Is(err, domain.ErrInvalidOrderID) {
		WriteError(w, http.StatusNotFound, "order_not_found", errorMessages[domain.ErrInvalidOrderID])
		return
	}

	var status int
	switch domain.CategoryOf(err) {
	case domain.CategoryValidation:
		status = http.StatusBadRequest
	case domain.CategoryAuthorization:
		status = http.StatusForbidden
	case domain.CategoryNotFound:
		status = http.StatusNotFound
	case domain.CategoryStateConflict, domain.CategoryInsufficiency:
		status = http.StatusConflict
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
		return
	}

	for sentinel, msg := range errorMessages {
		if errors.Is(err, sentinel) {
			WriteError(w, status, sentinel.Error(), msg)
			return
		}
	}
	WriteError(w, status, string(domain.CategoryOf(err)), err.Error())
}
