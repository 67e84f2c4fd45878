package billing

import (
	"errors"
	"fmt"

	"club-ledger/internal/money"
)

var (
	// ErrValidation marks malformed input rejected before any write.
	ErrValidation = errors.New("billing: validation")
	// ErrNotFound marks an unknown member, charge, category or discipline.
	ErrNotFound = errors.New("billing: not found")
	// ErrConflict marks an operation that collides with existing state.
	ErrConflict = errors.New("billing: conflict")
	// ErrUpstream marks a failure of the payment gateway.
	ErrUpstream = errors.New("billing: upstream")
	// ErrPrecision marks an amount that cannot be represented or is negative where disallowed.
	ErrPrecision = money.ErrPrecision
)

// Validationf builds an ErrValidation with a message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf builds an ErrNotFound with a message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Conflictf builds an ErrConflict with a message.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// AmountError classifies a money parse failure: precision problems keep
// ErrPrecision, everything else becomes ErrValidation.
func AmountError(field string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, money.ErrPrecision) {
		return fmt.Errorf("%s: %w", field, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrValidation, field, err)
}
