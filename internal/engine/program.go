package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/uniflow/internal/ir"
)

// Status is a Program's lifecycle state: NotStarted -> Running -> Stopped.
type Status int

const (
	StatusNotStarted Status = iota
	StatusRunning
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusNotStarted:
		return "not-started"
	case StatusRunning:
		return "running"
	case StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// phase is the reentrancy lock. Only the goroutine that moves the Program
// out of phaseIdle may call the reducer.
type phase int

const (
	phaseIdle phase = iota
	phaseUpdating
	phaseDispatching
)

// Program owns state S and serializes every transition through its reducer.
//
// Thread-safety model:
//   - Accept, Dispatch, GetState, Stop: safe from any goroutine
//   - Run: call once
//
// INVARIANTS:
//   - At most one cycle is in flight
//   - State is only replaced by the draining goroutine
type Program[S any] struct {
	updater     Updater[S]
	executor    CommandExecutor
	renderer    Renderer[S]
	middlewares []Middleware[S]
	equal       func(a, b S) bool
	clock       *Clock
	logger      *slog.Logger

	mu     sync.Mutex
	status Status
	phase  phase
	state  S
	idle   chan struct{} // closed while phase == phaseIdle

	queue *msgQueue
	subs  *subscriptions[S]
}

// Option configures a Program.
type Option[S any] func(*Program[S])

// WithLogger sets the Program's logger. Default: slog.Default().
func WithLogger[S any](l *slog.Logger) Option[S] {
	return func(p *Program[S]) {
		p.logger = l
	}
}

// WithRenderer sets the render hook, called only when the state changed.
func WithRenderer[S any](r Renderer[S]) Option[S] {
	return func(p *Program[S]) {
		p.renderer = r
	}
}

// WithMiddleware appends middleware. Hooks run in the order given.
func WithMiddleware[S any](mw ...Middleware[S]) Option[S] {
	return func(p *Program[S]) {
		p.middlewares = append(p.middlewares, mw...)
	}
}

// WithStateEqual sets the identity test that decides whether a returned
// state is new. Without it, every returned state counts as new.
func WithStateEqual[S any](eq func(a, b S) bool) Option[S] {
	return func(p *Program[S]) {
		p.equal = eq
	}
}

// WithClock sets the clock used to number processed messages.
func WithClock[S any](c *Clock) Option[S] {
	return func(p *Program[S]) {
		p.clock = c
	}
}

// New creates a Program around updater. The Program registers itself as a
// message consumer of executor. A nil executor drops every command.
func New[S any](updater Updater[S], executor CommandExecutor, opts ...Option[S]) *Program[S] {
	idle := make(chan struct{})
	close(idle)

	p := &Program[S]{
		updater:  updater,
		executor: executor,
		clock:    NewClock(),
		logger:   slog.Default(),
		idle:     idle,
		queue:    newMsgQueue(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.subs = newSubscriptions[S](p, p.logger)

	if executor != nil {
		executor.AddConsumer(p)
	}
	return p
}

// Run starts the Program with initial state, registers subs, and accepts
// initialMsg (skipped if nil). Run is one-shot: later calls change nothing
// and return an ALREADY_RUNNING or PROGRAM_STOPPED error.
func (p *Program[S]) Run(initial S, initialMsg ir.Msg, subs ...Subscription[S]) error {
	p.mu.Lock()
	switch p.status {
	case StatusRunning:
		p.mu.Unlock()
		p.logger.Debug("run ignored, program already running")
		return &RuntimeError{Code: ErrCodeAlreadyRunning, Message: "run called twice"}
	case StatusStopped:
		p.mu.Unlock()
		return NewStoppedError("run", StatusStopped)
	}
	p.status = StatusRunning
	p.state = initial
	p.subs.add(subs...)
	p.mu.Unlock()

	p.logger.Info("program started", "subscriptions", len(subs))

	p.subs.notify(initial)
	if initialMsg != nil {
		p.Accept(initialMsg)
	}
	return nil
}

// Accept queues msg for processing. If the Program is idle the calling
// goroutine drains the queue before returning; otherwise the message is
// picked up by the cycle in progress. IdleMsg is dropped. Messages accepted
// before Run or after Stop are dropped.
func (p *Program[S]) Accept(msg ir.Msg) {
	if msg == nil || ir.IsIdle(msg) {
		return
	}

	p.mu.Lock()
	if p.status != StatusRunning {
		status := p.status
		p.mu.Unlock()
		p.logger.Debug("message dropped",
			"msg_type", ir.MsgType(msg),
			"status", status.String(),
		)
		return
	}

	p.queue.push(msg)
	if p.phase != phaseIdle {
		p.mu.Unlock()
		return
	}
	p.phase = phaseUpdating
	p.idle = make(chan struct{})
	p.mu.Unlock()

	p.drain()
}

// drain runs cycles until the queue is empty. Only the goroutine that
// claimed the lock in Accept runs it.
func (p *Program[S]) drain() {
	for {
		p.mu.Lock()
		msg, ok := p.queue.peek()
		if !ok || p.status != StatusRunning {
			p.phase = phaseIdle
			close(p.idle)
			p.mu.Unlock()
			return
		}
		p.phase = phaseUpdating
		state := p.state
		p.mu.Unlock()

		p.cycle(msg, state)
	}
}

// cycle processes one message. msg is still at the head of the queue.
func (p *Program[S]) cycle(msg ir.Msg, state S) {
	seq := p.clock.Next()

	for _, mw := range p.middlewares {
		mw.BeforeUpdate(msg, state)
	}

	result := p.update(msg, state)
	p.queue.pop()

	next, changed := p.resolve(state, result)

	for _, mw := range p.middlewares {
		mw.AfterUpdate(msg, next)
	}

	p.mu.Lock()
	p.state = next
	p.phase = phaseDispatching
	p.mu.Unlock()

	if changed && p.renderer != nil {
		p.renderer.Render(next)
	}

	p.logger.Debug("message processed",
		"seq", seq,
		"msg_type", ir.MsgType(msg),
		"result", result.Kind().String(),
		"changed", changed,
	)

	p.subs.notify(next)
	p.dispatch(result.Cmd())
}

// update calls the reducer. A panic stops the Program and is re-raised as a
// REDUCER_PANIC RuntimeError.
func (p *Program[S]) update(msg ir.Msg, state S) ir.Result[S] {
	defer func() {
		if r := recover(); r != nil {
			err := NewReducerPanicError(ir.MsgType(msg), r)
			p.logger.Error("reducer panicked, stopping program",
				"msg_type", ir.MsgType(msg),
				"error", err,
			)
			p.mu.Lock()
			p.phase = phaseIdle
			close(p.idle)
			p.mu.Unlock()
			p.Stop()
			panic(err)
		}
	}()
	return p.updater.Update(msg, state)
}

func (p *Program[S]) resolve(current S, result ir.Result[S]) (S, bool) {
	next, ok := result.State()
	if !ok {
		return current, false
	}
	if p.equal != nil && p.equal(current, next) {
		return next, false
	}
	return next, true
}

// dispatch hands cmd to the executor. Batch members are submitted one by
// one; None is skipped.
func (p *Program[S]) dispatch(cmd ir.Cmd) {
	if ir.IsNone(cmd) {
		return
	}
	if p.executor == nil {
		p.logger.Warn("no executor, dropping command", "cmd_type", ir.IdentityOf(cmd).Type)
		return
	}
	if b, ok := cmd.(ir.Batch); ok {
		for _, member := range b.Cmds() {
			if ir.IsNone(member) {
				continue
			}
			p.executor.Execute(member)
		}
		return
	}
	p.executor.Execute(cmd)
}

// Dispatch submits cmd straight to the executor, bypassing the reducer.
func (p *Program[S]) Dispatch(cmd ir.Cmd) error {
	p.mu.Lock()
	status := p.status
	p.mu.Unlock()
	if status != StatusRunning {
		return NewStoppedError("dispatch", status)
	}
	p.dispatch(cmd)
	return nil
}

// GetState returns the current state. ok is false before Run.
func (p *Program[S]) GetState() (state S, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status == StatusNotStarted {
		return state, false
	}
	return p.state, true
}

// Status returns the lifecycle status.
func (p *Program[S]) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Pending returns the number of queued messages, including the one being
// processed.
func (p *Program[S]) Pending() int {
	return p.queue.len()
}

// Busy reports whether a cycle is in progress.
func (p *Program[S]) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phase != phaseIdle
}

// Subscriptions returns the names of started subscriptions.
func (p *Program[S]) Subscriptions() []string {
	return p.subs.active()
}

// WaitIdle blocks until no cycle is in progress or ctx is done.
// Effects still running in the executor are not waited for.
func (p *Program[S]) WaitIdle(ctx context.Context) error {
	for {
		p.mu.Lock()
		if p.phase == phaseIdle {
			p.mu.Unlock()
			return nil
		}
		idle := p.idle
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-idle:
		}
	}
}

// Stop moves the Program to Stopped, drops pending messages, cancels
// subscriptions and stops the executor. Stop is idempotent.
func (p *Program[S]) Stop() {
	p.mu.Lock()
	if p.status == StatusStopped {
		p.mu.Unlock()
		return
	}
	p.status = StatusStopped
	dropped := p.queue.clear()
	p.mu.Unlock()

	p.subs.stop()
	if p.executor != nil {
		p.executor.Stop()
	}
	p.logger.Info("program stopped", "dropped", dropped)
}
