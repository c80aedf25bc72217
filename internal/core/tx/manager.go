// Package tx declares the unit-of-work boundary used by domain services.
// Postgres and the in-memory store both implement Manager.
package tx

import (
	"context"
)

// Manager runs fn as one unit of work. A non-nil error from fn rolls back
// every write made through ctx; otherwise the writes commit together.
// A call made while ctx already carries a transaction joins it.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
