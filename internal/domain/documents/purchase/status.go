package purchase

import (
	"strings"

	"landedcost/internal/core/apperror"
)

// Status is the lifecycle state of a purchase.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusInTransit Status = "IN_TRANSIT"
	StatusCustoms   Status = "CUSTOMS"
	StatusReceived  Status = "RECEIVED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"

	// statusShipped is accepted on input and stored as IN_TRANSIT.
	statusShipped Status = "SHIPPED"
)

// AllStatuses lists statuses in their nominal order.
var AllStatuses = []Status{
	StatusPending,
	StatusConfirmed,
	StatusInTransit,
	StatusCustoms,
	StatusReceived,
	StatusCompleted,
	StatusCancelled,
}

// ParseStatus normalises s (case, SHIPPED alias) and validates it.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if st == statusShipped {
		st = StatusInTransit
	}
	if !st.IsValid() {
		return "", apperror.NewValidation("unknown purchase status").
			WithDetail("field", "status").
			WithDetail("value", s)
	}
	return st, nil
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	for _, st := range AllStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition may leave s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransitionTo reports whether a plain status write from s to target is
// legal. COMPLETED is reachable only through Complete.
func (s Status) CanTransitionTo(target Status) bool {
	if s.IsTerminal() || !target.IsValid() {
		return false
	}
	if target == StatusCompleted {
		return false
	}
	return true
}

func (s Status) String() string {
	return string(s)
}

func errFinalized(s Status) error {
	return apperror.NewInvalidState("purchase already finalized").
		WithDetail("status", string(s))
}
