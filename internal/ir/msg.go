package ir

import "fmt"

// Msg is an immutable event that drives a state transition.
// Applications define their own message types; the runtime reserves
// IdleMsg, InitMsg and ErrorMsg.
type Msg any

// IdleMsg is explicitly suppressed: a Program never queues it.
type IdleMsg struct{}

// InitMsg is the conventional first message of a Program.
type InitMsg struct{}

// ErrorMsg carries a recoverable effect failure back to the reducer.
// Cmd is the command whose effect failed.
type ErrorMsg struct {
	Err error
	Cmd Cmd
}

func (m ErrorMsg) String() string {
	if m.Cmd == nil {
		return fmt.Sprintf("ErrorMsg(%v)", m.Err)
	}
	return fmt.Sprintf("ErrorMsg(%v, %s)", m.Err, IdentityOf(m.Cmd))
}

// IsIdle reports whether msg is the reserved idle message.
func IsIdle(msg Msg) bool {
	switch msg.(type) {
	case IdleMsg, *IdleMsg:
		return true
	default:
		return false
	}
}

// MessageConsumer receives messages produced outside the reducer:
// effect results, proxied messages and subscription output.
// Implementations must be safe to call from any goroutine.
type MessageConsumer interface {
	Accept(msg Msg)
}

// ConsumerFunc adapts a function to MessageConsumer.
type ConsumerFunc func(msg Msg)

// Accept calls f(msg).
func (f ConsumerFunc) Accept(msg Msg) {
	f(msg)
}

// MsgType returns the Go type name of msg, e.g. "sample.DataMsg".
// Used as the msg_type log key and journal column.
func MsgType(msg Msg) string {
	if msg == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%T", msg)
}
