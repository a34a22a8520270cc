package service

import (
	"errors"
	"fmt"

	"github.com/tripledger/tripledger/internal/storage"
)

// The service layer classifies failures into a small set of kinds so the
// transport can map them to status codes without parsing messages.

// ValidationError reports input the caller can fix.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

// NotFoundError reports a missing trip, member, expense, or debt.
type NotFoundError struct {
	msg string
}

func (e *NotFoundError) Error() string { return e.msg }

// ConversionError reports a bulk conversion that could not convert anything.
type ConversionError struct {
	msg string
}

func (e *ConversionError) Error() string { return e.msg }

// ConsistencyError reports stored data that violates the ledger invariants,
// such as splits that no longer sum to their expense amount.
type ConsistencyError struct {
	msg string
}

func (e *ConsistencyError) Error() string { return e.msg }

func validationf(format string, args ...interface{}) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

func notFoundf(format string, args ...interface{}) error {
	return &NotFoundError{msg: fmt.Sprintf(format, args...)}
}

func conversionf(format string, args ...interface{}) error {
	return &ConversionError{msg: fmt.Sprintf(format, args...)}
}

// wrapStoreErr converts storage sentinel errors into service error kinds.
func wrapStoreErr(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return &NotFoundError{msg: err.Error()}
	}
	return err
}
