// Package id generates and parses entity identifiers.
package id

import (
	"github.com/google/uuid"
)

// ID identifies purchases, items, products and movements.
type ID = uuid.UUID

// New returns a UUIDv7, so ids sort by creation time.
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v
}

// Parse validates and converts s.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

func Nil() ID {
	return uuid.Nil
}

func IsNil(v ID) bool {
	return v == uuid.Nil
}
