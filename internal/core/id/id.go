// Package id provides UUIDv7 generation for ledger entities and documents.
// UUIDv7 is time-ordered, so movements and batches sort naturally by creation.
package id

import (
	"strings"

	"github.com/google/uuid"

	"stockledger/internal/core/apperror"
)

// ID is a type alias for UUID, used across all entities.
type ID = uuid.UUID

// New generates a new UUIDv7, falling back to V4 if the clock source fails.
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v
}

// Parse converts string to ID with validation.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// ParseField parses a request field, returning a validation error naming the field.
func ParseField(field, s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return uuid.Nil, apperror.NewValidation(field+" is required").WithDetail("field", field)
	}
	v, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, apperror.NewValidation("invalid "+field).
			WithDetail("field", field).
			WithDetail("value", s)
	}
	return v, nil
}

// MustParse converts string to ID, panics on error.
// Use only for constants and tests.
func MustParse(s string) ID {
	return uuid.MustParse(s)
}

// Nil returns zero-value UUID.
func Nil() ID {
	return uuid.Nil
}

// IsNil checks if ID is zero-value.
func IsNil(v ID) bool {
	return v == uuid.Nil
}
