package models

import (
	"errors"
	"fmt"
)

// AllocationErrorKind enumerates the validation failures a ledger write can hit.
type AllocationErrorKind string

const (
	CapacityExceeded    AllocationErrorKind = "CapacityExceeded"
	ProductMismatch     AllocationErrorKind = "ProductMismatch"
	CrossCustomer       AllocationErrorKind = "CrossCustomer"
	InvalidQuantity     AllocationErrorKind = "InvalidQuantity"
	PurposeExcluded     AllocationErrorKind = "PurposeExcluded"
	StaleProposal       AllocationErrorKind = "StaleProposal"
	DuplicateAllocation AllocationErrorKind = "DuplicateAllocation"
	NotFound            AllocationErrorKind = "NotFound"
	StorageError        AllocationErrorKind = "StorageError"
)

// AllocationError is a validation failure for a single proposed ledger entry.
// Batch operations recover these per entry and report them itemized; they are
// never fatal to the batch.
type AllocationError struct {
	Kind    AllocationErrorKind
	Message string
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newAllocationError(kind AllocationErrorKind, format string, args ...interface{}) *AllocationError {
	return &AllocationError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// AsAllocationError unwraps err into an *AllocationError; storage-layer failures
// map to the StorageError kind so callers can tell them apart from validation.
func AsAllocationError(err error) *AllocationError {
	var ae *AllocationError
	if errors.As(err, &ae) {
		return ae
	}
	return &AllocationError{Kind: StorageError, Message: err.Error()}
}
