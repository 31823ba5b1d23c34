package effect

import (
	"context"
	"sync/atomic"

	"github.com/roach88/uniflow/internal/ir"
)

// RunningEffect is a cancellable handle to an in-flight effect.
// Cancel is safe to call at any time, any number of times; cancelling a
// finished effect is a no-op.
type RunningEffect interface {
	ID() string
	Identity() ir.Identity
	// Epoch orders effects by start time within one executor.
	Epoch() uint64
	Cancel()
	IsRunning() bool
	// Done is closed once the effect's goroutine has returned.
	Done() <-chan struct{}
}

const (
	stateRunning int32 = iota
	stateDone
	stateCancelled
)

type runningEffect struct {
	id       string
	identity ir.Identity
	epoch    uint64
	cancel   context.CancelFunc
	state    atomic.Int32
	done     chan struct{}
}

func newRunningEffect(id string, identity ir.Identity, epoch uint64, cancel context.CancelFunc) *runningEffect {
	return &runningEffect{
		id:       id,
		identity: identity,
		epoch:    epoch,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

func (r *runningEffect) ID() string            { return r.id }
func (r *runningEffect) Identity() ir.Identity { return r.identity }
func (r *runningEffect) Epoch() uint64         { return r.epoch }
func (r *runningEffect) Done() <-chan struct{} { return r.done }
func (r *runningEffect) IsRunning() bool       { return r.state.Load() == stateRunning }

// Cancel cancels the effect if it is still running.
func (r *runningEffect) Cancel() {
	r.tryCancel()
}

// tryCancel moves running -> cancelled and cancels the effect's context.
// Returns false if the effect already completed or was already cancelled.
func (r *runningEffect) tryCancel() bool {
	if !r.state.CompareAndSwap(stateRunning, stateCancelled) {
		return false
	}
	r.cancel()
	return true
}

// complete moves running -> done. Returns false if the effect was cancelled
// first, in which case its result must not be delivered.
func (r *runningEffect) complete() bool {
	return r.state.CompareAndSwap(stateRunning, stateDone)
}
