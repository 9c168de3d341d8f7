package store

import (
	"errors"
	"fmt"
	"strings"
)

// Error taxonomy surfaced to callers. Controllers map these onto HTTP
// statuses; nothing here is swallowed.
var (
	ErrNotFound           = errors.New("record not found")
	ErrInvalidHierarchy   = errors.New("a child tab cannot be created under another child tab")
	ErrAccessCodeConflict = errors.New("access code conflicts with the tab family")
	ErrTabClosed          = errors.New("tab is paid or cancelled and no longer accepts changes")
	ErrInvalidQuantity    = errors.New("quantity must be a positive integer")
)

// InvalidTransitionError names both ends of a rejected status change.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %q to %q", e.From, e.To)
}

// ValidationError carries every violation found in a payload, not just the
// first one.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "invalid payload: " + strings.Join(e.Violations, "; ")
}
