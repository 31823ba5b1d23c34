package feature

import (
	"context"
	"errors"

	"github.com/roach88/uniflow/internal/ir"
)

// ErrUnhandledCommand is returned by Call when no feature accepts a command.
var ErrUnhandledCommand = errors.New("no feature handles command")

// Feature is a sub-reducer over state S plus the effects for the commands
// it emits.
type Feature[S any] interface {
	// HandlesMessage reports whether Update should see msg.
	HandlesMessage(msg ir.Msg) bool

	// HandlesCommand reports whether Call can run cmd.
	HandlesCommand(cmd ir.Cmd) bool

	// Update is the pure reducer.
	Update(msg ir.Msg, state S) ir.Result[S]

	// Call runs the effect for cmd.
	Call(ctx context.Context, cmd ir.Cmd) (ir.Msg, error)
}

// Funcs builds a Feature from functions. A nil Messages or Commands filter
// accepts nothing; a nil CallFn reports ErrUnhandledCommand.
type Funcs[S any] struct {
	Messages func(msg ir.Msg) bool
	Commands func(cmd ir.Cmd) bool
	UpdateFn func(msg ir.Msg, state S) ir.Result[S]
	CallFn   func(ctx context.Context, cmd ir.Cmd) (ir.Msg, error)
}

func (f Funcs[S]) HandlesMessage(msg ir.Msg) bool {
	return f.Messages != nil && f.Messages(msg)
}

func (f Funcs[S]) HandlesCommand(cmd ir.Cmd) bool {
	return f.Commands != nil && f.Commands(cmd)
}

func (f Funcs[S]) Update(msg ir.Msg, state S) ir.Result[S] {
	if f.UpdateFn == nil {
		return ir.Idle[S]()
	}
	return f.UpdateFn(msg, state)
}

func (f Funcs[S]) Call(ctx context.Context, cmd ir.Cmd) (ir.Msg, error) {
	if f.CallFn == nil {
		return nil, ErrUnhandledCommand
	}
	return f.CallFn(ctx, cmd)
}

// MessageTypes returns a message filter accepting messages whose dynamic
// type equals that of one of the samples.
func MessageTypes(samples ...ir.Msg) func(ir.Msg) bool {
	types := make(map[string]struct{}, len(samples))
	for _, s := range samples {
		types[ir.MsgType(s)] = struct{}{}
	}
	return func(msg ir.Msg) bool {
		_, ok := types[ir.MsgType(msg)]
		return ok
	}
}

// CommandTypes returns a command filter accepting the given command types.
func CommandTypes(cmdTypes ...string) func(ir.Cmd) bool {
	types := make(map[string]struct{}, len(cmdTypes))
	for _, t := range cmdTypes {
		types[t] = struct{}{}
	}
	return func(cmd ir.Cmd) bool {
		if cmd == nil {
			return false
		}
		_, ok := types[cmd.CmdType()]
		return ok
	}
}
