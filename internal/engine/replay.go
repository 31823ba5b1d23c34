package engine

import "github.com/roach88/uniflow/internal/ir"

// Replay folds msgs through updater starting from initial and returns the
// final state. Commands are ignored and IdleMsg is skipped, matching what a
// Program does with the same script when effects are not fed back.
//
// Replay is pure: the same (updater, initial, msgs) always yields the same
// state. Used to check recorded runs for determinism.
func Replay[S any](updater Updater[S], initial S, msgs []ir.Msg) S {
	state := initial
	for _, msg := range msgs {
		if msg == nil || ir.IsIdle(msg) {
			continue
		}
		state = updater.Update(msg, state).StateOr(state)
	}
	return state
}

// ReplaySteps is Replay that also returns the state after every message.
func ReplaySteps[S any](updater Updater[S], initial S, msgs []ir.Msg) []S {
	steps := make([]S, 0, len(msgs))
	state := initial
	for _, msg := range msgs {
		if msg == nil || ir.IsIdle(msg) {
			continue
		}
		state = updater.Update(msg, state).StateOr(state)
		steps = append(steps, state)
	}
	return steps
}
