package services

import (
	"fmt"

	"github.com/google/uuid"
)

// ValidationError marks a business-rule violation the caller can fix by
// correcting input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

// NotFoundError marks a missing order, transaction, or payment method.
type NotFoundError struct {
	Resource string
	ID       uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// PaymentError marks a gateway communication or initiation failure. The
// associated transaction row stays PENDING; it is resolved by reconciliation
// or the pending sweep, never dropped.
type PaymentError struct {
	Provider string
	Err      error
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("payment initiation failed via %s: %v", e.Provider, e.Err)
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}
