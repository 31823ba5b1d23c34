package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/uniflow/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string   // optional - latest run if empty
	MsgTypes []string // optional - filter to these message names
	List     bool
}

// TraceStep is one recorded step in the trace timeline.
type TraceStep struct {
	Seq   int64           `json:"seq"`
	Msg   string          `json:"msg"`
	Data  json.RawMessage `json:"data,omitempty"`
	State json.RawMessage `json:"state,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Run      store.Run   `json:"run"`
	Timeline []TraceStep `json:"timeline"`
	Stats    TraceStats  `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalSteps int            `json:"total_steps"`
	ByMsg      map[string]int `json:"by_msg"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Print the recorded steps of a run",
		Long: `Print the steps recorded in the journal for one run: every processed
message in order, with its payload. --verbose adds the state after each step.

Without --run the most recent run is shown. --list prints all runs instead.

Examples:
  uniflow trace --db ./uniflow.db
  uniflow trace --db ./uniflow.db --run 0190c7e2-...
  uniflow trace --db ./uniflow.db --msg query --msg results
  uniflow trace --db ./uniflow.db --list --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to trace (default: latest)")
	cmd.Flags().StringSliceVar(&opts.MsgTypes, "msg", nil, "filter to these message names")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list recorded runs")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := openExisting(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	if opts.List {
		runs, err := st.ListRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		if opts.Format == "json" {
			return formatter.JSON(runs)
		}
		outputRunList(cmd.OutOrStdout(), runs)
		return nil
	}

	run, err := resolveRun(ctx, st, opts.RunID)
	if errors.Is(err, store.ErrRunNotFound) {
		if opts.RunID != "" {
			return WrapExitError(ExitCommandError, "run not found", err)
		}
		if opts.Format == "json" {
			return formatter.Error(ErrCodeNotFound, "journal has no runs", nil)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No runs found.")
		return nil
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	steps, err := st.ReadSteps(ctx, run.ID, opts.MsgTypes...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read steps", err)
	}

	result := TraceResult{
		Run:      run,
		Timeline: buildTimeline(steps, opts.Verbose),
		Stats: TraceStats{
			TotalSteps: len(steps),
			ByMsg:      make(map[string]int),
		},
	}
	for _, step := range steps {
		result.Stats.ByMsg[step.MsgType]++
	}

	if opts.Format == "json" {
		return formatter.JSON(result)
	}
	outputTraceText(cmd.OutOrStdout(), result, opts.Verbose)
	return nil
}

// openExisting opens a journal that must already exist.
func openExisting(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// resolveRun reads the run with id, or the latest run when id is empty.
func resolveRun(ctx context.Context, st *store.Store, id string) (store.Run, error) {
	if id == "" {
		return st.LatestRun(ctx)
	}
	return st.ReadRun(ctx, id)
}

// buildTimeline converts journal steps to timeline entries.
// State is included only when verbose is set.
func buildTimeline(steps []store.Step, verbose bool) []TraceStep {
	timeline := make([]TraceStep, 0, len(steps))
	for _, step := range steps {
		ts := TraceStep{Seq: step.Seq, Msg: step.MsgType}
		if len(step.Msg) > 0 && string(step.Msg) != "{}" {
			ts.Data = step.Msg
		}
		if verbose {
			ts.State = step.State
		}
		timeline = append(timeline, ts)
	}
	return timeline
}

func outputTraceText(w io.Writer, result TraceResult, verbose bool) {
	fmt.Fprintf(w, "%s %s %s\n\n",
		headerStyle.Render("Run"), result.Run.ID, mutedStyle.Render("("+result.Run.Label+")"))

	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "No steps recorded.")
		return
	}

	headers := []string{"SEQ", "MSG", "PAYLOAD"}
	if verbose {
		headers = append(headers, "STATE")
	}
	rows := make([][]string, 0, len(result.Timeline))
	for _, step := range result.Timeline {
		row := []string{strconv.FormatInt(step.Seq, 10), step.Msg, truncate(string(step.Data), 60)}
		if verbose {
			row = append(row, string(step.State))
		}
		rows = append(rows, row)
	}
	fmt.Fprint(w, renderTable(headers, rows))
	fmt.Fprintf(w, "\n%s\n", mutedStyle.Render(fmt.Sprintf("%d steps", result.Stats.TotalSteps)))
}

func outputRunList(w io.Writer, runs []store.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found.")
		return
	}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{strconv.FormatInt(run.CreatedSeq, 10), run.ID, run.Label})
	}
	fmt.Fprint(w, renderTable([]string{"#", "RUN", "LABEL"}, rows))
}
