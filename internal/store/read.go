package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ReadRun returns the run with the given id, or ErrRunNotFound.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, label, created_seq, initial_state
		FROM runs
		WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return run, nil
}

// LatestRun returns the most recently created run, or ErrRunNotFound if
// the journal is empty.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, label, created_seq, initial_state
		FROM runs
		ORDER BY created_seq DESC
		LIMIT 1
	`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("latest run: %w", ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("latest run: %w", err)
	}
	return run, nil
}

// ListRuns returns every run ordered by created_seq.
// Returns an empty slice (not nil) for an empty journal.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, label, created_seq, initial_state
		FROM runs
		ORDER BY created_seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadSteps returns the steps of a run ordered by seq.
// msgTypes, if given, restricts the result to those message names.
// Returns an empty slice (not nil) if the run has no steps.
func (s *Store) ReadSteps(ctx context.Context, runID string, msgTypes ...string) ([]Step, error) {
	query := `
		SELECT run_id, seq, msg_type, msg, state
		FROM steps
		WHERE run_id = ?`
	args := []any{runID}
	if len(msgTypes) > 0 {
		query += ` AND msg_type IN (?` + strings.Repeat(",?", len(msgTypes)-1) + `)`
		for _, t := range msgTypes {
			args = append(args, t)
		}
	}
	query += `
		ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	steps := []Step{}
	for rows.Next() {
		var st Step
		var msg, state string
		if err := rows.Scan(&st.RunID, &st.Seq, &st.MsgType, &msg, &state); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		st.Msg = []byte(msg)
		st.State = []byte(state)
		steps = append(steps, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps: %w", err)
	}
	return steps, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	var initial string
	if err := row.Scan(&run.ID, &run.Label, &run.CreatedSeq, &initial); err != nil {
		return Run{}, err
	}
	run.InitialState = []byte(initial)
	return run, nil
}
