// Package storage provides the data persistence layer for the vola application.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hrakoto/vola/internal/common"
	"github.com/hrakoto/vola/internal/model"
)

// Validation errors.
var (
	ErrNilContext  = errors.New("context cannot be nil")
	ErrEmptyString = errors.New("string parameter cannot be empty")
	ErrInvalidID   = errors.New("id must be positive")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateID ensures a record id is positive.
func validateID(id int64, paramName string) error {
	if id <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidID, paramName)
	}
	return nil
}

// normalizeMemberInput validates a member input and applies defaults,
// mirroring the schema defaults for gender and member type.
func normalizeMemberInput(input *model.MemberInput) error {
	if strings.TrimSpace(input.CardNumber) == "" {
		return fmt.Errorf("%w: card number is required", common.ErrValidation)
	}
	if strings.TrimSpace(input.FullName) == "" {
		return fmt.Errorf("%w: full name is required", common.ErrValidation)
	}

	if input.Gender == "" {
		input.Gender = model.GenderMale
	}
	if input.Gender != model.GenderMale && input.Gender != model.GenderFemale {
		return fmt.Errorf("%w: invalid gender %q", common.ErrValidation, input.Gender)
	}

	if input.MemberType == "" {
		input.MemberType = model.TypeCommunicant
	}
	if !input.MemberType.Valid() {
		return fmt.Errorf("%w: invalid member type %q", common.ErrValidation, input.MemberType)
	}

	return nil
}

// parseAmount parses an exact decimal amount string. Amounts must be
// non-negative; binary floats are never involved.
func parseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", common.ErrInvalidAmount, s)
	}
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %q is negative", common.ErrInvalidAmount, s)
	}
	return amount, nil
}
