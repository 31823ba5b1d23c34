package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/uniflow/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool               `json:"valid"`
	Path   string             `json:"path"`
	Config *config.Config     `json:"config,omitempty"`
	Errors []ValidationDetail `json:"errors,omitempty"`
}

// ValidationDetail is one configuration error.
type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config.cue>",
		Short: "Validate a configuration file",
		Long: `Validate a CUE configuration file against the runtime schema and
print the resolved configuration, defaults included.

Exit codes:
  0 - Configuration is valid
  1 - Configuration is invalid
  2 - Command error (file not found, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	formatter.VerboseLog("Validating %s", path)
	cfg, err := config.Load(path)
	if err != nil {
		var cfgErr *config.ConfigError
		if !errors.As(err, &cfgErr) {
			return WrapExitError(ExitCommandError, "failed to read config", err)
		}
		result := ValidationResult{
			Path:   path,
			Errors: []ValidationDetail{detailOf(cfgErr)},
		}
		if opts.Format == "json" {
			if err := formatter.JSON(result); err != nil {
				return err
			}
		} else {
			outputValidationText(cmd.OutOrStdout(), result)
		}
		return WrapExitError(ExitFailure, "invalid configuration", err)
	}

	result := ValidationResult{Valid: true, Path: path, Config: &cfg}
	if opts.Format == "json" {
		return formatter.JSON(result)
	}
	outputValidationText(cmd.OutOrStdout(), result)
	return nil
}

func detailOf(e *config.ConfigError) ValidationDetail {
	d := ValidationDetail{Field: e.Field, Message: e.Message}
	if e.Pos.IsValid() {
		d.Line = e.Pos.Line()
		d.Column = e.Pos.Column()
	}
	return d
}

func outputValidationText(w io.Writer, result ValidationResult) {
	if !result.Valid {
		fmt.Fprintf(w, "%s %s\n", mark(false), result.Path)
		for _, e := range result.Errors {
			loc := ""
			if e.Line > 0 {
				loc = fmt.Sprintf("%d:%d: ", e.Line, e.Column)
			}
			fmt.Fprintf(w, "  %s%s: %s\n", loc, e.Field, e.Message)
		}
		return
	}

	cfg := result.Config
	fmt.Fprintf(w, "%s %s\n", mark(true), result.Path)
	fmt.Fprint(w, renderTable([]string{"SETTING", "VALUE"}, [][]string{
		{"executor.catch_errors", fmt.Sprint(cfg.Executor.CatchErrors)},
		{"executor.max_concurrency", fmt.Sprint(cfg.Executor.MaxConcurrency)},
		{"executor.retire", cfg.Executor.Retire},
		{"log.level", cfg.Log.Level},
		{"store.path", cfg.Store.Path},
	}))
}
