package store

import (
	"errors"
	"fmt"
)

// StoreError marks a failed store operation. The pipeline treats these as
// transient per-item failures: the affected item gets a failed decision and
// the batch continues.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsStoreError returns true if the error chain contains a StoreError.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
