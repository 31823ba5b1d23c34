package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// RunState summarizes a recorded run for replay.
type RunState struct {
	Run        Run
	Steps      []Step
	LastSeq    int64
	FinalState json.RawMessage // state after the last step; the initial state if there are none
}

// GetRunState loads a run and all its steps.
func (s *Store) GetRunState(ctx context.Context, runID string) (RunState, error) {
	run, err := s.ReadRun(ctx, runID)
	if err != nil {
		return RunState{}, fmt.Errorf("get run state: %w", err)
	}

	steps, err := s.ReadSteps(ctx, runID)
	if err != nil {
		return RunState{}, fmt.Errorf("get run state: %w", err)
	}

	state := RunState{
		Run:        run,
		Steps:      steps,
		FinalState: run.InitialState,
	}
	if n := len(steps); n > 0 {
		state.LastSeq = steps[n-1].Seq
		state.FinalState = steps[n-1].State
	}
	return state, nil
}
