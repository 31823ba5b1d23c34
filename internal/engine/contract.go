package engine

import (
	"log/slog"

	"github.com/roach88/uniflow/internal/ir"
)

// Updater is the reducer contract. Update must be pure: no I/O, no mutation
// of shared state, deterministic given (msg, state).
type Updater[S any] interface {
	Update(msg ir.Msg, state S) ir.Result[S]
}

// UpdateFunc adapts a function to Updater.
type UpdateFunc[S any] func(msg ir.Msg, state S) ir.Result[S]

// Update calls f(msg, state).
func (f UpdateFunc[S]) Update(msg ir.Msg, state S) ir.Result[S] {
	return f(msg, state)
}

// Renderer observes new states. Render must not mutate state or emit
// commands.
type Renderer[S any] interface {
	Render(state S)
}

// RenderFunc adapts a function to Renderer.
type RenderFunc[S any] func(state S)

// Render calls f(state).
func (f RenderFunc[S]) Render(state S) {
	f(state)
}

// Middleware observes every cycle. Hooks must not mutate state or emit
// commands. They may call Program.Accept; the message is queued.
type Middleware[S any] interface {
	BeforeUpdate(msg ir.Msg, state S)
	AfterUpdate(msg ir.Msg, state S)
}

// CommandExecutor runs the commands a Program emits and feeds results back
// through the consumers it is given. Implemented by effect.Executor.
type CommandExecutor interface {
	Execute(cmd ir.Cmd)
	Stop()
	AddConsumer(c ir.MessageConsumer)
}

// LoggingMiddleware logs every cycle at debug level.
type LoggingMiddleware[S any] struct {
	Logger *slog.Logger
}

func (m LoggingMiddleware[S]) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}

// BeforeUpdate implements Middleware.
func (m LoggingMiddleware[S]) BeforeUpdate(msg ir.Msg, state S) {
	m.logger().Debug("update begin", "msg_type", ir.MsgType(msg))
}

// AfterUpdate implements Middleware.
func (m LoggingMiddleware[S]) AfterUpdate(msg ir.Msg, state S) {
	m.logger().Debug("update end", "msg_type", ir.MsgType(msg), "state", state)
}
