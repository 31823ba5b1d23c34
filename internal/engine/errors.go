package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected by a Program.
//
// Runtime errors include:
//   - Program stopped: the operation needs a running Program
//   - Already running: Run was called a second time
//   - Reducer panic: the reducer panicked and the Program stopped itself
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// MsgType is the type of the message being processed, if any.
	MsgType string

	// Panic is the recovered value for ErrCodeReducerPanic.
	Panic any
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeProgramStopped indicates the Program is not running.
	ErrCodeProgramStopped RuntimeErrorCode = "PROGRAM_STOPPED"

	// ErrCodeAlreadyRunning indicates Run was called more than once.
	ErrCodeAlreadyRunning RuntimeErrorCode = "ALREADY_RUNNING"

	// ErrCodeReducerPanic indicates the reducer panicked.
	ErrCodeReducerPanic RuntimeErrorCode = "REDUCER_PANIC"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.MsgType != "" {
		return fmt.Sprintf("%s: %s (msg=%s)", e.Code, e.Message, e.MsgType)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsStopped returns true if err is a PROGRAM_STOPPED runtime error.
// Uses errors.As to handle wrapped errors.
func IsStopped(err error) bool {
	return hasCode(err, ErrCodeProgramStopped)
}

// IsAlreadyRunning returns true if err is an ALREADY_RUNNING runtime error.
func IsAlreadyRunning(err error) bool {
	return hasCode(err, ErrCodeAlreadyRunning)
}

// IsReducerPanic returns true if err is a REDUCER_PANIC runtime error.
func IsReducerPanic(err error) bool {
	return hasCode(err, ErrCodeReducerPanic)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// NewStoppedError creates a RuntimeError for an operation on a Program
// that is not running.
func NewStoppedError(op string, status Status) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeProgramStopped,
		Message: fmt.Sprintf("%s: program is %s", op, status),
	}
}

// NewReducerPanicError creates a RuntimeError for a panicking reducer.
func NewReducerPanicError(msgType string, recovered any) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeReducerPanic,
		Message: fmt.Sprintf("reducer panicked: %v", recovered),
		MsgType: msgType,
		Panic:   recovered,
	}
}
