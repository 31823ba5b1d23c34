// Package engine implements the Program scheduler.
//
// A Program owns the current state and serializes every state transition.
// Messages arrive through Accept from any goroutine (callers, effect
// results, subscriptions) and are processed one at a time:
//
//  1. before-update middleware
//  2. reducer call: update(msg, state) -> Result
//  3. after-update middleware
//  4. render, only if the state changed
//  5. subscriptions see the new state (one-shot promotion)
//  6. the emitted command goes to the CommandExecutor
//
// The goroutine that finds the Program idle drains the queue; everyone else
// only enqueues. Messages accepted while a cycle is in progress, including
// ones delivered synchronously while its command is dispatched, are picked up
// by the same loop. The loop is a trampoline: stack depth stays bounded no
// matter how many messages arrive in a burst.
//
// INVARIANTS:
//   - update and render are never called concurrently or re-entrantly
//   - pending messages are processed strictly FIFO
//   - IdleMsg never enters the queue
//
// Effects run elsewhere (see package effect). The Program never blocks on
// them; their results re-enter through Accept.
package engine
