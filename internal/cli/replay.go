package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"reflect"

	"github.com/spf13/cobra"

	"github.com/roach88/uniflow/internal/engine"
	"github.com/roach88/uniflow/internal/ir"
	"github.com/roach88/uniflow/internal/sample"
	"github.com/roach88/uniflow/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - specific run only
}

// ReplayRunResult holds the replay result for a single run.
type ReplayRunResult struct {
	RunID         string `json:"run_id"`
	Label         string `json:"label"`
	Steps         int    `json:"steps"`
	Deterministic bool   `json:"deterministic"`
	MismatchSeq   int64  `json:"mismatch_seq,omitempty"` // first step whose recomputed state differs
	Error         string `json:"error,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Runs             []ReplayRunResult `json:"runs"`
	TotalRuns        int               `json:"total_runs"`
	AllDeterministic bool              `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-fold recorded runs and verify determinism",
		Long: `Re-fold the recorded messages of each run through the sample app's
reducer, without effects, and compare the state after every step with the
state that was recorded.

Exit codes:
  0 - All runs are deterministic
  1 - A recomputed state differs from the recorded one
  2 - Command error (database not found, etc.)

Examples:
  uniflow replay --db ./uniflow.db
  uniflow replay --db ./uniflow.db --run 0190c7e2-...
  uniflow replay --db ./uniflow.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "replay specific run only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := openExisting(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	var runIDs []string
	if opts.RunID != "" {
		runIDs = []string{opts.RunID}
	} else {
		runs, err := st.ListRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		for _, run := range runs {
			runIDs = append(runIDs, run.ID)
		}
	}

	result := ReplayResult{
		Runs:             make([]ReplayRunResult, 0, len(runIDs)),
		TotalRuns:        len(runIDs),
		AllDeterministic: true,
	}

	logger := newLogger(opts.RootOptions, cmd, slog.LevelWarn)
	replayer := newReplayer(logger)
	for _, id := range runIDs {
		state, err := st.GetRunState(ctx, id)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to read run %s", id), err)
		}
		runResult := replayer.verify(state)
		result.Runs = append(result.Runs, runResult)
		if !runResult.Deterministic {
			result.AllDeterministic = false
		}
	}

	if opts.Format == "json" {
		if err := outputReplayJSON(cmd.OutOrStdout(), result); err != nil {
			return err
		}
	} else {
		outputReplayText(cmd.OutOrStdout(), result, opts.Verbose)
	}

	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// replayer recomputes recorded runs with the sample app's reducer.
type replayer struct {
	updater engine.Updater[sample.State]
	codec   *sample.Codec
}

func newReplayer(logger *slog.Logger) *replayer {
	return &replayer{
		// The reducer never touches the backend.
		updater: sample.NewApp(sample.StaticBackend{}, logger),
		codec:   sample.NewCodec(),
	}
}

// verify folds the run's messages and compares every intermediate state.
func (r *replayer) verify(rs store.RunState) ReplayRunResult {
	out := ReplayRunResult{
		RunID: rs.Run.ID,
		Label: rs.Run.Label,
		Steps: len(rs.Steps),
	}

	var initial sample.State
	if err := json.Unmarshal(rs.Run.InitialState, &initial); err != nil {
		out.Error = fmt.Sprintf("decode initial state: %v", err)
		return out
	}

	msgs := make([]ir.Msg, 0, len(rs.Steps))
	for _, step := range rs.Steps {
		msg, err := r.codec.DecodeMsg(step.MsgType, step.Msg)
		if err != nil {
			out.Error = fmt.Sprintf("step %d: %v", step.Seq, err)
			out.MismatchSeq = step.Seq
			return out
		}
		msgs = append(msgs, msg)
	}

	states := engine.ReplaySteps(r.updater, initial, msgs)
	if len(states) != len(rs.Steps) {
		out.Error = fmt.Sprintf("replay produced %d states for %d steps", len(states), len(rs.Steps))
		return out
	}

	for i, step := range rs.Steps {
		same, err := sameJSON(states[i], step.State)
		if err != nil {
			out.Error = fmt.Sprintf("step %d: %v", step.Seq, err)
			out.MismatchSeq = step.Seq
			return out
		}
		if !same {
			out.MismatchSeq = step.Seq
			return out
		}
	}

	out.Deterministic = true
	return out
}

// sameJSON reports whether state encodes to the same JSON value as recorded.
func sameJSON(state sample.State, recorded json.RawMessage) (bool, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return false, fmt.Errorf("encode state: %w", err)
	}
	var got, want any
	if err := json.Unmarshal(data, &got); err != nil {
		return false, err
	}
	if err := json.Unmarshal(recorded, &want); err != nil {
		return false, fmt.Errorf("decode recorded state: %w", err)
	}
	return reflect.DeepEqual(got, want), nil
}

func outputReplayJSON(w io.Writer, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}
	if !result.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeMismatch,
			Message: "determinism verification failed",
		}
	}

	formatter := &OutputFormatter{Format: "json", Writer: w}
	return formatter.JSON(response)
}

func outputReplayText(w io.Writer, result ReplayResult, verbose bool) {
	fmt.Fprintf(w, "Replay Summary: %d run(s)\n\n", result.TotalRuns)

	for _, run := range result.Runs {
		fmt.Fprintf(w, "%s Run: %s %s\n", mark(run.Deterministic), run.RunID, mutedStyle.Render("("+run.Label+")"))
		fmt.Fprintf(w, "  Steps: %d\n", run.Steps)
		if run.Error != "" {
			fmt.Fprintf(w, "  Error: %s\n", run.Error)
		} else if !run.Deterministic {
			fmt.Fprintf(w, "  State differs from the recording at step %d\n", run.MismatchSeq)
		} else if verbose {
			fmt.Fprintln(w, "  Every intermediate state matches")
		}
		fmt.Fprintln(w)
	}

	if result.AllDeterministic {
		fmt.Fprintf(w, "%s All runs verified deterministic\n", mark(true))
		return
	}
	fmt.Fprintf(w, "%s Determinism verification failed\n", mark(false))
}
