package fault

import (
	"errors"
	"fmt"
	"testing"
)

func TestNotFoundWrapping(t *testing.T) {
	err := NotFound("shop", 7)
	if !IsNotFound(err) {
		t.Fatalf("expected IsNotFound")
	}
	wrapped := fmt.Errorf("loading: %w", err)
	if !IsNotFound(wrapped) {
		t.Fatalf("expected IsNotFound through wrapping")
	}
	if IsConstraint(wrapped) {
		t.Fatalf("kind must not bleed into constraint")
	}
}

func TestPromoError(t *testing.T) {
	err := NewPromoError("SPRING15", PromoMinAmount)
	if !errors.Is(err, ErrPromoInvalid) {
		t.Fatalf("promo error must unwrap to ErrPromoInvalid")
	}
	if got := PromoReasonOf(err); got != PromoMinAmount {
		t.Fatalf("reason: want %s, got %s", PromoMinAmount, got)
	}
	wrapped := fmt.Errorf("placing order: %w", err)
	if got := PromoReasonOf(wrapped); got != PromoMinAmount {
		t.Fatalf("reason through wrapping: got %s", got)
	}
	if got := PromoReasonOf(errors.New("other")); got != "" {
		t.Fatalf("non-promo error must yield empty reason, got %s", got)
	}
}
