package effect

import (
	"context"

	"github.com/roach88/uniflow/internal/ir"
)

// Handler performs the side effect described by a command and returns the
// resulting message. Call must honour ctx: cancellation of an effect is
// delivered through it. Returning a nil message delivers nothing.
type Handler interface {
	Call(ctx context.Context, cmd ir.Cmd) (ir.Msg, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, cmd ir.Cmd) (ir.Msg, error)

// Call calls f(ctx, cmd).
func (f HandlerFunc) Call(ctx context.Context, cmd ir.Cmd) (ir.Msg, error) {
	return f(ctx, cmd)
}
