package feature

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/uniflow/internal/ir"
)

// entry is a slice with its sub-state type erased.
type entry[M any] interface {
	name() string
	handlesMessage(msg ir.Msg) bool
	handlesCommand(cmd ir.Cmd) bool
	update(msg ir.Msg, state M) (next M, changed bool, cmd ir.Cmd)
	call(ctx context.Context, cmd ir.Cmd) (ir.Msg, error)
}

// Slice binds a Feature over sub-state S into a composite over M.
type Slice[M, S any] struct {
	Name    string
	Feature Feature[S]
	Extract func(M) S
	Inject  func(M, S) M
}

func (s Slice[M, S]) name() string                   { return s.Name }
func (s Slice[M, S]) handlesMessage(msg ir.Msg) bool { return s.Feature.HandlesMessage(msg) }
func (s Slice[M, S]) handlesCommand(cmd ir.Cmd) bool { return s.Feature.HandlesCommand(cmd) }

func (s Slice[M, S]) update(msg ir.Msg, state M) (M, bool, ir.Cmd) {
	result := s.Feature.Update(msg, s.Extract(state))
	sub, ok := result.State()
	if !ok {
		return state, false, result.Cmd()
	}
	return s.Inject(state, sub), true, result.Cmd()
}

func (s Slice[M, S]) call(ctx context.Context, cmd ir.Cmd) (ir.Msg, error) {
	return s.Feature.Call(ctx, cmd)
}

// Composite merges features sharing one state tree M.
//
// Thread-safety: register slices before use. After that, Update and Call
// may be called concurrently; the slice list is never modified.
type Composite[M any] struct {
	entries []entry[M]
	main    entry[M]
	logger  *slog.Logger
}

// Option configures a Composite.
type Option[M any] func(*Composite[M])

// WithLogger sets the composite's logger. Default: slog.Default().
func WithLogger[M any](l *slog.Logger) Option[M] {
	return func(c *Composite[M]) {
		c.logger = l
	}
}

// New creates an empty Composite.
func New[M any](opts ...Option[M]) *Composite[M] {
	c := &Composite[M]{logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Add registers f over the sub-state selected by extract/inject.
// Slices run in registration order.
func Add[M, S any](c *Composite[M], name string, f Feature[S], extract func(M) S, inject func(M, S) M) *Composite[M] {
	c.entries = append(c.entries, Slice[M, S]{
		Name:    name,
		Feature: f,
		Extract: extract,
		Inject:  inject,
	})
	return c
}

// Main sets the feature that sees the whole state. It always runs after
// every slice registered with Add. Calling Main again replaces it.
func (c *Composite[M]) Main(name string, f Feature[M]) *Composite[M] {
	c.main = Slice[M, M]{
		Name:    name,
		Feature: f,
		Extract: func(m M) M { return m },
		Inject:  func(_ M, s M) M { return s },
	}
	return c
}

func (c *Composite[M]) all() []entry[M] {
	if c.main == nil {
		return c.entries
	}
	all := make([]entry[M], 0, len(c.entries)+1)
	all = append(all, c.entries...)
	return append(all, c.main)
}

// Names returns slice names in dispatch order.
func (c *Composite[M]) Names() []string {
	var names []string
	for _, e := range c.all() {
		names = append(names, e.name())
	}
	return names
}

// HandlesMessage reports whether any slice accepts msg.
func (c *Composite[M]) HandlesMessage(msg ir.Msg) bool {
	for _, e := range c.all() {
		if e.handlesMessage(msg) {
			return true
		}
	}
	return false
}

// HandlesCommand reports whether any slice accepts cmd.
func (c *Composite[M]) HandlesCommand(cmd ir.Cmd) bool {
	for _, e := range c.all() {
		if e.handlesCommand(cmd) {
			return true
		}
	}
	return false
}

// Update folds msg through every slice that accepts it, in order. Each
// slice reads the aggregate as left by earlier slices. Emitted commands are
// merged (set union).
func (c *Composite[M]) Update(msg ir.Msg, state M) ir.Result[M] {
	aggregate := state
	changed := false
	acc := ir.None
	handled := 0

	for _, e := range c.all() {
		if !e.handlesMessage(msg) {
			continue
		}
		handled++
		next, ok, cmd := e.update(msg, aggregate)
		if ok {
			aggregate = next
			changed = true
		}
		acc = ir.Merge(acc, cmd)
	}

	if handled == 0 {
		c.logger.Debug("no feature handles message", "msg_type", ir.MsgType(msg))
	}

	switch {
	case changed && !ir.IsNone(acc):
		return ir.StateAndCmd(aggregate, acc)
	case changed:
		return ir.StateOnly(aggregate)
	case !ir.IsNone(acc):
		return ir.EffectOnly[M](acc)
	default:
		return ir.Idle[M]()
	}
}

// Call runs cmd on the first slice, in registration order, that accepts it.
func (c *Composite[M]) Call(ctx context.Context, cmd ir.Cmd) (ir.Msg, error) {
	for _, e := range c.all() {
		if e.handlesCommand(cmd) {
			return e.call(ctx, cmd)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnhandledCommand, ir.IdentityOf(cmd))
}
