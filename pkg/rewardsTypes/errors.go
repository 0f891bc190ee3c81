package rewardsTypes

import (
	"errors"
	"fmt"
)

// ErrNotRegistered is returned when an identity has no ledger registration.
var ErrNotRegistered = errors.New("identity is not registered")

// SourceUnavailableError means the forum snapshot could not be fetched.
type SourceUnavailableError struct {
	Err error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("forum source unavailable: %v", e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

// LedgerReadError means a point-in-time ledger read failed.
type LedgerReadError struct {
	Call string
	Err  error
}

func (e *LedgerReadError) Error() string {
	return fmt.Sprintf("ledger read '%s' failed: %v", e.Call, e.Err)
}

func (e *LedgerReadError) Unwrap() error { return e.Err }

type WriteStage string

var (
	WriteStage_Submit  WriteStage = "submit"
	WriteStage_Confirm WriteStage = "confirm"
)

// LedgerWriteError identifies the operation that failed and whether it failed
// on submission or on confirmation.
type LedgerWriteError struct {
	Operation *Operation
	Stage     WriteStage
	Err       error
}

func (e *LedgerWriteError) Error() string {
	return fmt.Sprintf("ledger write %s failed at %s: %v", e.Operation.String(), e.Stage, e.Err)
}

func (e *LedgerWriteError) Unwrap() error { return e.Err }

// NotificationError is logged, never escalated.
type NotificationError struct {
	Err error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notification failed: %v", e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }
