package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/uniflow/internal/engine"
	"github.com/roach88/uniflow/internal/ir"
)

// MsgEncoder turns a message into its journal name and JSON payload.
type MsgEncoder interface {
	EncodeMsg(msg ir.Msg) (name string, payload []byte, err error)
}

// Recorder is an engine.Middleware that writes one step per processed
// message. Write failures are logged and kept; they never stop the Program.
type Recorder[S any] struct {
	store  *Store
	run    Run
	enc    MsgEncoder
	clock  *engine.Clock
	logger *slog.Logger

	mu  sync.Mutex
	err error
}

var _ engine.Middleware[int] = (*Recorder[int])(nil)

// NewRecorder creates the run row for a new run and returns its recorder.
func NewRecorder[S any](ctx context.Context, s *Store, runID, label string, initial S, enc MsgEncoder, logger *slog.Logger) (*Recorder[S], error) {
	run, err := s.CreateRun(ctx, runID, label, initial)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder[S]{
		store:  s,
		run:    run,
		enc:    enc,
		clock:  engine.NewClock(),
		logger: logger,
	}, nil
}

// Run returns the recorded run.
func (r *Recorder[S]) Run() Run {
	return r.run
}

// BeforeUpdate implements engine.Middleware.
func (r *Recorder[S]) BeforeUpdate(ir.Msg, S) {}

// AfterUpdate writes the step for msg.
func (r *Recorder[S]) AfterUpdate(msg ir.Msg, state S) {
	seq := r.clock.Next()
	if err := r.write(seq, msg, state); err != nil {
		r.logger.Error("failed to record step",
			"run_id", r.run.ID,
			"seq", seq,
			"msg_type", ir.MsgType(msg),
			"error", err,
		)
		r.mu.Lock()
		if r.err == nil {
			r.err = err
		}
		r.mu.Unlock()
	}
}

func (r *Recorder[S]) write(seq int64, msg ir.Msg, state S) error {
	name, payload, err := r.enc.EncodeMsg(msg)
	if err != nil {
		return err
	}
	stateJSON, err := marshalJSON(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	// Steps are written from the Program's drain loop, which has no context.
	return r.store.WriteStep(context.Background(), Step{
		RunID:   r.run.ID,
		Seq:     seq,
		MsgType: name,
		Msg:     payload,
		State:   []byte(stateJSON),
	})
}

// Err returns the first write failure, if any.
func (r *Recorder[S]) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Steps returns the number of steps recorded so far.
func (r *Recorder[S]) Steps() int64 {
	return r.clock.Current()
}
