// Package effect implements the command executor of the uniflow runtime.
//
// The executor is the concurrent half of the runtime. A Program hands it
// commands; every plain command runs as an independent goroutine and its
// result comes back to the Program as a message through a MessageConsumer.
//
// # Dispatch
//
// Commands are dispatched by their runtime variant:
//
//   - Switch: every running effect of the same command type is cancelled
//     before the new one starts ("latest wins")
//   - Cancel: the effect with the target's identity is cancelled, if running
//   - CancelByType: every running effect of the type is cancelled
//   - Proxy: the message is delivered directly, no effect runs
//   - Batch: members are dispatched one by one
//   - anything else: a new effect is started and registered
//
// # Registry
//
// Running effects are indexed by command type and then by value key. The
// registry is the only shared mutable structure of the executor; all
// mutations happen under its mutex. Entries are removed on completion and
// cancellation, so lookups never return a finished effect.
//
// # Late deliveries
//
// An effect delivers its message only if it moves from running to done
// atomically. Cancel, CancelByType, Switch supersession and Stop move the
// effect from running to cancelled first, so a task that finishes a moment
// after being cancelled is silently dropped.
//
// # Failures
//
// With catch-errors enabled (the default) handler errors and panics become
// ir.ErrorMsg values routed like any other result. Otherwise errors are
// passed to the failure handler (panicking by default) and panics are not
// recovered.
package effect
