package effect

import (
	"errors"
	"fmt"

	"github.com/roach88/uniflow/internal/ir"
)

// ErrExecutorStopped is returned by Submit after Stop.
var ErrExecutorStopped = errors.New("executor stopped")

// EffectError is a failure of an effect body: either an error returned by
// the handler or a recovered panic.
type EffectError struct {
	// Cmd is the command whose effect failed.
	Cmd ir.Cmd

	// Err is the handler's error. Nil for panics.
	Err error

	// Panic is the recovered panic value. Nil for returned errors.
	Panic any

	// Stack is the goroutine stack captured at recovery.
	Stack string
}

// Error implements the error interface.
func (e *EffectError) Error() string {
	id := ir.IdentityOf(e.Cmd)
	if e.Panic != nil {
		return fmt.Sprintf("effect %s panicked: %v", id, e.Panic)
	}
	return fmt.Sprintf("effect %s failed: %v", id, e.Err)
}

// Unwrap returns the handler's error.
func (e *EffectError) Unwrap() error {
	return e.Err
}

// IsPanic returns true if err wraps an EffectError caused by a panic.
// Uses errors.As to handle wrapped errors.
func IsPanic(err error) bool {
	var ee *EffectError
	if errors.As(err, &ee) {
		return ee.Panic != nil
	}
	return false
}
