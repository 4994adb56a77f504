package domain

import "errors"

// Sentinel errors for core operations. Every failure aborts the whole
// operation with no state change. The handler layer maps them to HTTP
// status codes through CategoryOf.
var (
	ErrInvalidRecipient = errors.New("invalid_recipient")
	ErrInvalidSpender   = errors.New("invalid_spender")
	ErrInvalidToken     = errors.New("invalid_token")
	ErrInvalidOrderID   = errors.New("invalid_order_id")
	ErrInvalidAmount    = errors.New("invalid_amount")

	ErrUnauthorized = errors.New("unauthorized")

	ErrAlreadyFilled    = errors.New("already_filled")
	ErrAlreadyCancelled = errors.New("already_cancelled")

	ErrInsufficientBalance        = errors.New("insufficient_balance")
	ErrInsufficientAllowance      = errors.New("insufficient_allowance")
	ErrInsufficientCustodyBalance = errors.New("insufficient_custody_balance")

	ErrTokenNotFound   = errors.New("token_not_found")
	ErrWebhookNotFound = errors.New("webhook_not_found")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Category groups errors by how a caller should react to them.
type Category string

const (
	CategoryValidation    Category = "validation"
	CategoryAuthorization Category = "authorization"
	CategoryStateConflict Category = "state_conflict"
	CategoryInsufficiency Category = "insufficiency"
	CategoryNotFound      Category = "not_found"
	CategoryInternal      Category = "internal"
)

// CategoryOf classifies err, looking through wrapping. Unknown errors are
// CategoryInternal.
func CategoryOf(err error) Category {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return CategoryValidation
	}

	switch {
	case errors.Is(err, ErrInvalidRecipient),
		errors.Is(err, ErrInvalidSpender),
		errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrInvalidOrderID),
		errors.Is(err, ErrInvalidAmount):
		return CategoryValidation
	case errors.Is(err, ErrUnauthorized):
		return CategoryAuthorization
	case errors.Is(err, ErrAlreadyFilled), errors.Is(err, ErrAlreadyCancelled):
		return CategoryStateConflict
	case errors.Is(err, ErrInsufficientBalance),
		errors.Is(err, ErrInsufficientAllowance),
		errors.Is(err, ErrInsufficientCustodyBalance):
		return CategoryInsufficiency
	case errors.Is(err, ErrTokenNotFound), errors.Is(err, ErrWebhookNotFound):
		return CategoryNotFound
	}
	return CategoryInternal
}
