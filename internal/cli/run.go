package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/uniflow/internal/config"
	"github.com/roach88/uniflow/internal/harness"
	"github.com/roach88/uniflow/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Config   string
}

// RunResult is the output of the run command.
type RunResult struct {
	Scenario string               `json:"scenario"`
	Pass     bool                 `json:"pass"`
	Errors   []string             `json:"errors,omitempty"`
	RunID    string               `json:"run_id,omitempty"`
	Trace    []harness.TraceEvent `json:"trace"`
	Counts   []harness.MsgCount   `json:"counts"`
	State    map[string]any       `json:"state"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a scenario and print the final state",
		Long: `Run one message-script scenario against a fresh sample Program.

Prints every processed message and the final state. With --db the run is
recorded in the step journal so it can be inspected with trace and checked
with replay. --config supplies log level and journal path; the scenario's
own config section still configures its executor.

Exit codes:
  0 - Scenario passed
  1 - Scenario failed
  2 - Command error (invalid paths, etc.)

Examples:
  uniflow run ./scenarios/load_value.yaml
  uniflow run ./scenarios/load_value.yaml --db ./uniflow.db
  uniflow run ./scenarios/load_value.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run in this SQLite journal")
	cmd.Flags().StringVar(&opts.Config, "config", "", "CUE configuration file")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	cfg := config.Default()
	if opts.Config != "" {
		var err error
		cfg, err = config.Load(opts.Config)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load config", err)
		}
	}
	logger := newLogger(opts.RootOptions, cmd, cfg.SlogLevel())

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = cfg.Store.Path
	}

	runOpts := []harness.Option{harness.WithLogger(logger)}
	if dbPath != "" {
		st, err := store.Open(dbPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
		runOpts = append(runOpts, harness.WithStore(st))
	}

	logger.Info("running scenario", "scenario", scenario.Name, "steps", len(scenario.Steps))
	result, err := harness.Run(scenario, runOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to run scenario", err)
	}

	out := RunResult{
		Scenario: scenario.Name,
		Pass:     result.Pass,
		Errors:   result.Errors,
		RunID:    result.RunID,
		Trace:    result.Trace,
		Counts:   result.Counts(),
		State:    result.State,
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if opts.Format == "json" {
		if err := formatter.JSON(out); err != nil {
			return err
		}
	} else if err := outputRunText(cmd.OutOrStdout(), out); err != nil {
		return err
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}

func outputRunText(w io.Writer, out RunResult) error {
	fmt.Fprintf(w, "%s %s (%d messages)\n\n", mark(out.Pass), out.Scenario, len(out.Trace))

	fmt.Fprint(w, renderTable([]string{"SEQ", "MSG", "PAYLOAD"}, traceRows(out.Trace)))

	state, err := json.MarshalIndent(out.State, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	fmt.Fprintf(w, "\n%s\n%s\n", headerStyle.Render("Final state"), state)

	if out.RunID != "" {
		fmt.Fprintf(w, "\n%s %s\n", mutedStyle.Render("run id:"), out.RunID)
	}
	if len(out.Errors) > 0 {
		fmt.Fprintf(w, "\n%s\n", failStyle.Render("Errors"))
		for _, e := range out.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	return nil
}

func traceRows(trace []harness.TraceEvent) [][]string {
	rows := make([][]string, 0, len(trace))
	for _, event := range trace {
		payload := ""
		if len(event.Payload) > 0 {
			data, err := json.Marshal(event.Payload)
			if err == nil {
				payload = string(data)
			}
		}
		rows = append(rows, []string{strconv.FormatInt(event.Seq, 10), event.Msg, truncate(payload, 72)})
	}
	return rows
}
