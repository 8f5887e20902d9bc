package models

import "fmt"

// ValidationError reports a caller-input problem (missing required field,
// out-of-range quantity). Never retried internally.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// InvalidTransitionError is returned when a guided lifecycle operation is
// invoked on a part whose current status is not a legal source for it. The
// current status is carried so callers can explain the rejection, or decide
// to use the SetPartStatus override instead.
type InvalidTransitionError struct {
	Op   string
	From PartStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s: part is currently %q", e.Op, e.From)
}

// InsufficientStockError is returned when a checkout asks for more than the
// item has on hand. Stock is left unchanged.
type InsufficientStockError struct {
	InventoryItemId int
	Requested       int
	Available       int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for item %d: requested %d, only %d on hand",
		e.InventoryItemId, e.Requested, e.Available)
}
