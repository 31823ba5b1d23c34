package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// NewRunID returns a time-sortable UUIDv7 run id.
func NewRunID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// CreateRun inserts a run and assigns its created_seq (one past the
// highest so far). The returned Run carries the assigned value.
func (s *Store) CreateRun(ctx context.Context, id, label string, initialState any) (Run, error) {
	stateJSON, err := marshalJSON(initialState)
	if err != nil {
		return Run{}, fmt.Errorf("create run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("create run: begin: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(created_seq), 0) + 1 FROM runs`).Scan(&seq); err != nil {
		return Run{}, fmt.Errorf("create run: next seq: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, label, created_seq, initial_state)
		VALUES (?, ?, ?, ?)
	`, id, label, seq, stateJSON)
	if err != nil {
		return Run{}, fmt.Errorf("create run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("create run: commit: %w", err)
	}

	return Run{ID: id, Label: label, CreatedSeq: seq, InitialState: []byte(stateJSON)}, nil
}

// WriteStep inserts a step record.
// Uses ON CONFLICT DO NOTHING for idempotency - rewriting the same
// (run_id, seq) is silently ignored.
//
// Note: the run referenced by RunID must exist (foreign key constraint).
func (s *Store) WriteStep(ctx context.Context, step Step) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO steps (run_id, seq, msg_type, msg, state)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		step.RunID,
		step.Seq,
		step.MsgType,
		rawOrEmpty(step.Msg),
		rawOrEmpty(step.State),
	)
	if err != nil {
		return fmt.Errorf("write step: %w", err)
	}
	return nil
}
