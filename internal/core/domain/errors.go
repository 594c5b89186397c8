package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrOutOfStock         = errors.New("out of stock")
	ErrInvariantViolation = errors.New("invariant violation")
	ErrDuplicateRequest   = errors.New("duplicate request")

	ErrEmptyBorrower    = fmt.Errorf("%w: borrower name is empty", ErrValidation)
	ErrInvalidDateRange = fmt.Errorf("%w: due date is before borrow date", ErrValidation)
	ErrBookNotFound     = fmt.Errorf("book %w", ErrNotFound)
	ErrRecordNotFound   = fmt.Errorf("borrow record %w", ErrNotFound)
)
