// Package fault defines the error kinds the marketplace core reports to its
// boundaries. HTTP and bot layers translate these into status codes and user
// messages; everything else wraps them with context via fmt.Errorf("%w").
package fault

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports a missing row or entity.
	ErrNotFound = errors.New("not found")
	// ErrConstraint reports a unique, foreign-key or check violation.
	ErrConstraint = errors.New("constraint violation")
	// ErrQuotaExceeded reports a product activation beyond the shop's
	// effective subscription quota.
	ErrQuotaExceeded = errors.New("product quota exceeded")
	// ErrInvalidTransition reports an illegal order status change.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrTimeout reports an operation exceeding its transaction deadline.
	ErrTimeout = errors.New("operation timed out")
	// ErrFatalMigration reports a failed schema migration step. Startup must
	// abort when this is returned.
	ErrFatalMigration = errors.New("fatal migration failure")
	// ErrPromoInvalid is the base error every PromoError unwraps to.
	ErrPromoInvalid = errors.New("promo invalid")
)

// PromoReason narrows why a promo code was rejected.
type PromoReason string

const (
	PromoUnknown        PromoReason = "unknown"
	PromoInactive       PromoReason = "inactive"
	PromoExpired        PromoReason = "expired"
	PromoMinAmount      PromoReason = "min_amount"
	PromoUsedUp         PromoReason = "used_up"
	PromoFirstOrderOnly PromoReason = "first_order_only"
)

// PromoError reports a rejected promo code with its reason.
type PromoError struct {
	Code   string
	Reason PromoReason
}

func (e *PromoError) Error() string {
	return fmt.Sprintf("promo %q invalid: %s", e.Code, e.Reason)
}

func (e *PromoError) Unwrap() error { return ErrPromoInvalid }

// NewPromoError builds a PromoError for the given code and reason.
func NewPromoError(code string, reason PromoReason) *PromoError {
	return &PromoError{Code: code, Reason: reason}
}

// NotFound wraps ErrNotFound with the entity kind and id.
func NotFound(entity string, id int64) error {
	return fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
}

// IsNotFound reports whether err is, or wraps, ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConstraint reports whether err is, or wraps, ErrConstraint.
func IsConstraint(err error) bool { return errors.Is(err, ErrConstraint) }

// PromoReasonOf extracts the reason from a promo rejection, or "" when err is
// not a promo failure.
func PromoReasonOf(err error) PromoReason {
	var pe *PromoError
	if errors.As(err, &pe) {
		return pe.Reason
	}
	return ""
}
