package effect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/roach88/uniflow/internal/ir"
)

// Executor runs commands as concurrent effects and feeds their results
// back through its message consumers.
//
// Thread-safety model:
//   - Execute/Submit: safe from any goroutine
//   - AddConsumer: safe from any goroutine
//   - Stop: safe from any goroutine, idempotent
//
// INVARIANTS:
//   - At most one effect per Switch command type is running
//   - A cancelled effect never delivers a message
//   - Cancelling one effect never affects its siblings
type Executor struct {
	handler Handler
	reg     *registry
	ids     IDGenerator
	logger  *slog.Logger

	catchErrors bool
	onFailure   func(cmd ir.Cmd, err error)
	retire      RetirePolicy
	onRetire    func(RunningEffect)
	sem         *semaphore.Weighted

	root       context.Context
	rootCancel context.CancelFunc

	consumersMu sync.RWMutex
	consumers   []ir.MessageConsumer

	epoch    atomic.Uint64
	inFlight atomic.Int64
	stopped  atomic.Bool
	stopOnce sync.Once
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the executor's logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(x *Executor) {
		x.logger = l
	}
}

// WithCatchErrors selects the failure policy.
//
// true (default): handler errors and panics become ir.ErrorMsg values
// delivered like any other result.
// false: handler errors go to the failure handler and panics are not
// recovered (fail-fast).
func WithCatchErrors(catch bool) Option {
	return func(x *Executor) {
		x.catchErrors = catch
	}
}

// WithFailureHandler sets the function called for handler errors when
// catch-errors is disabled. Default: panic with the error.
func WithFailureHandler(fn func(cmd ir.Cmd, err error)) Option {
	return func(x *Executor) {
		x.onFailure = fn
	}
}

// WithMaxConcurrency bounds the number of effect bodies running at once.
// Zero or negative means unbounded (default).
func WithMaxConcurrency(n int64) Option {
	return func(x *Executor) {
		if n > 0 {
			x.sem = semaphore.NewWeighted(n)
		} else {
			x.sem = nil
		}
	}
}

// WithRetirePolicy sets what happens to a running effect displaced by a new
// effect with the same identity. Default: RetireKeep.
func WithRetirePolicy(p RetirePolicy) Option {
	return func(x *Executor) {
		x.retire = p
	}
}

// WithRetireHook installs a function called with every displaced effect,
// after the retire policy has been applied.
func WithRetireHook(fn func(RunningEffect)) Option {
	return func(x *Executor) {
		x.onRetire = fn
	}
}

// WithIDGenerator sets the effect id generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(x *Executor) {
		x.ids = g
	}
}

// New creates an Executor that runs plain commands through handler.
func New(handler Handler, opts ...Option) *Executor {
	root, cancel := context.WithCancel(context.Background())
	x := &Executor{
		handler:     handler,
		reg:         newRegistry(),
		ids:         UUIDv7Generator{},
		logger:      slog.Default(),
		catchErrors: true,
		retire:      RetireKeep,
		root:        root,
		rootCancel:  cancel,
	}
	x.onFailure = func(cmd ir.Cmd, err error) {
		panic(err)
	}

	for _, opt := range opts {
		opt(x)
	}

	return x
}

// AddConsumer registers a consumer for effect results and proxied messages.
func (x *Executor) AddConsumer(c ir.MessageConsumer) {
	x.consumersMu.Lock()
	defer x.consumersMu.Unlock()
	x.consumers = append(x.consumers, c)
}

// Execute dispatches cmd. Commands submitted after Stop are dropped.
func (x *Executor) Execute(cmd ir.Cmd) {
	if err := x.Submit(cmd); err != nil {
		x.logger.Debug("command dropped",
			"cmd_type", ir.IdentityOf(cmd).Type,
			"error", err,
		)
	}
}

// Submit dispatches cmd and reports ErrExecutorStopped after Stop.
func (x *Executor) Submit(cmd ir.Cmd) error {
	if x.stopped.Load() {
		return ErrExecutorStopped
	}
	if ir.IsNone(cmd) {
		return nil
	}

	switch c := cmd.(type) {
	case ir.Batch:
		for _, member := range c.Cmds() {
			if err := x.Submit(member); err != nil {
				return err
			}
		}
		return nil

	case ir.Switch:
		if ir.IsControl(c.Inner) {
			x.logger.Warn("switch wraps a control command, dispatching it unmarked",
				"cmd_type", ir.IdentityOf(c.Inner).Type,
			)
			return x.Submit(c.Inner)
		}
		return x.start(c.Inner, true)

	case ir.Cancel:
		id := ir.IdentityOf(c.Target)
		if x.reg.cancel(id) {
			x.logger.Debug("effect cancelled", "cmd_type", id.Type, "cmd_key", id.Key)
		} else {
			x.logger.Debug("cancel target not running", "cmd_type", id.Type, "cmd_key", id.Key)
		}
		return nil

	case ir.CancelByType:
		cancelled := x.reg.cancelType(c.Type)
		x.logger.Debug("effects cancelled by type", "cmd_type", c.Type, "count", len(cancelled))
		return nil

	case ir.Proxy:
		x.deliver(c.Msg)
		return nil

	default:
		return x.start(cmd, false)
	}
}

// start registers and launches an effect for a plain command.
func (x *Executor) start(cmd ir.Cmd, supersede bool) error {
	id := ir.IdentityOf(cmd)
	ctx, cancel := context.WithCancel(x.root)
	eff := newRunningEffect(x.ids.Generate(), id, x.epoch.Add(1), cancel)

	if supersede {
		cancelled, ok := x.reg.supersede(eff)
		if !ok {
			cancel()
			return ErrExecutorStopped
		}
		for _, old := range cancelled {
			x.logger.Debug("switch effect superseded",
				"cmd_type", id.Type,
				"effect_id", old.id,
				"by", eff.id,
			)
		}
	} else {
		displaced, ok := x.reg.save(eff, x.retire)
		if !ok {
			cancel()
			return ErrExecutorStopped
		}
		if displaced != nil {
			x.logger.Debug("effect displaced by same identity",
				"cmd_type", id.Type,
				"cmd_key", id.Key,
				"effect_id", displaced.id,
				"policy", x.retire.String(),
			)
			if x.onRetire != nil {
				x.onRetire(displaced)
			}
		}
	}

	x.inFlight.Add(1)
	x.logger.Debug("effect started",
		"cmd_type", id.Type,
		"cmd_key", id.Key,
		"effect_id", eff.id,
		"epoch", eff.epoch,
	)

	go x.run(ctx, eff, cmd)
	return nil
}

// run is the body of one effect goroutine.
func (x *Executor) run(ctx context.Context, eff *runningEffect, cmd ir.Cmd) {
	defer x.reg.tasks.Done()
	defer close(eff.done)
	defer x.inFlight.Add(-1)
	defer eff.cancel()

	if x.sem != nil {
		if err := x.sem.Acquire(ctx, 1); err != nil {
			x.reg.finish(eff)
			x.logger.Debug("effect cancelled before start", "effect_id", eff.id)
			return
		}
		defer x.sem.Release(1)
	}

	msg, err := x.invoke(ctx, cmd)

	if !x.reg.finish(eff) {
		x.logger.Debug("dropping result of cancelled effect",
			"cmd_type", eff.identity.Type,
			"effect_id", eff.id,
		)
		return
	}

	if err != nil {
		if !x.catchErrors {
			x.onFailure(cmd, err)
			return
		}
		x.logger.Warn("effect failed",
			"cmd_type", eff.identity.Type,
			"effect_id", eff.id,
			"error", err,
		)
		msg = ir.ErrorMsg{Err: err, Cmd: cmd}
	}

	if msg == nil || ir.IsIdle(msg) {
		return
	}
	x.deliver(msg)
}

// invoke calls the handler, converting panics into EffectError when
// catch-errors is enabled.
func (x *Executor) invoke(ctx context.Context, cmd ir.Cmd) (msg ir.Msg, err error) {
	if x.catchErrors {
		defer func() {
			if r := recover(); r != nil {
				msg = nil
				err = &EffectError{
					Cmd:   cmd,
					Panic: r,
					Stack: string(debug.Stack()),
				}
			}
		}()
	}

	msg, err = x.handler.Call(ctx, cmd)
	if err != nil {
		return nil, &EffectError{Cmd: cmd, Err: err}
	}
	return msg, nil
}

func (x *Executor) deliver(msg ir.Msg) {
	x.consumersMu.RLock()
	consumers := make([]ir.MessageConsumer, len(x.consumers))
	copy(consumers, x.consumers)
	x.consumersMu.RUnlock()

	if len(consumers) == 0 {
		x.logger.Warn("no message consumer, dropping message", "msg_type", fmt.Sprintf("%T", msg))
		return
	}
	for _, c := range consumers {
		c.Accept(msg)
	}
}

// Stop cancels every registered effect and the executor's root scope.
// Later commands are dropped. Stop is idempotent.
//
// Cancellation is isolated per effect: a failure while cancelling one
// effect does not prevent cancellation of the rest.
func (x *Executor) Stop() {
	x.stopOnce.Do(func() {
		x.stopped.Store(true)
		effects := x.reg.close()

		var errs []error
		for _, eff := range effects {
			if err := safeCancel(eff); err != nil {
				errs = append(errs, err)
			}
		}
		x.rootCancel()

		if err := errors.Join(errs...); err != nil {
			x.logger.Error("errors while stopping executor", "error", err)
		}
		x.logger.Debug("executor stopped", "cancelled", len(effects))
	})
}

func safeCancel(eff *runningEffect) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cancel effect %s: %v", eff.id, r)
		}
	}()
	eff.tryCancel()
	return nil
}

// Wait blocks until every accepted effect goroutine has returned.
// Call after Stop, or when no more commands will be submitted.
func (x *Executor) Wait() {
	x.reg.tasks.Wait()
}

// Stopped reports whether Stop has been called.
func (x *Executor) Stopped() bool {
	return x.stopped.Load()
}

// InFlight returns the number of started effects whose goroutine has not
// yet returned. Delivery happens before the count drops.
func (x *Executor) InFlight() int64 {
	return x.inFlight.Load()
}

// Running returns the running effects of cmdType, or of every type when
// cmdType is empty, ordered by start.
func (x *Executor) Running(cmdType string) []RunningEffect {
	effects := x.reg.running(cmdType)
	out := make([]RunningEffect, len(effects))
	for i, e := range effects {
		out[i] = e
	}
	return out
}

// Lookup returns the running effect registered under cmd's identity.
func (x *Executor) Lookup(cmd ir.Cmd) (RunningEffect, bool) {
	e, ok := x.reg.lookup(ir.IdentityOf(cmd))
	if !ok {
		return nil, false
	}
	return e, true
}
