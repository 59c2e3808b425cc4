package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/formulary-sh/formulary/internal/harness"
	"github.com/formulary-sh/formulary/internal/journal"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Journal string
}

// RunSummary is the payload of the run command.
type RunSummary struct {
	Result            *harness.Result `json:"result"`
	AssertionFailures []string        `json:"assertion_failures,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Drive a scripted pipeline run",
		Long: `Drive the pipeline call sites over a scripted candidate stream.

Loads the prescription documents named by the scenario, resolves the
active unit set, feeds the scripted candidates through the stages, and
evaluates the scenario's assertions against the result. With --journal
the run outcome (report entries and unit firings) is also recorded in
a SQLite journal.

Exit codes:
  0 - run completed and all assertions held
  1 - one or more assertions failed
  2 - command error (bad scenario, bad documents, journal I/O)

Examples:
  formulary run ./scenarios/flask.yaml
  formulary run ./scenarios/flask.yaml --journal ./runs.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to a SQLite journal to record the run outcome")

	return cmd
}

func runScenario(opts *RunOptions, scenarioPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	scenario, err := harness.LoadScenario(scenarioPath)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "load scenario", err)
	}

	slog.Info("driving scenario", "name", scenario.Name, "flavor", scenario.Flavor)
	result, err := harness.Run(scenario)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "run scenario", err)
	}

	if opts.Journal != "" {
		if err := recordOutcome(cmd.Context(), opts.Journal, scenario, result); err != nil {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitCommandError, "journal run", err)
		}
		slog.Info("run journaled", "path", opts.Journal, "token", result.RunToken)
	}

	failures := harness.EvaluateAssertions(result, scenario.Assertions)
	summary := RunSummary{Result: result, AssertionFailures: failures}

	if formatter.Format == "json" {
		if err := formatter.Success(summary); err != nil {
			return err
		}
	} else {
		printRunSummary(formatter, scenario.Name, summary)
	}

	if len(failures) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d assertion(s) failed", len(failures)))
	}
	return nil
}

func recordOutcome(ctx context.Context, path string, scenario *harness.Scenario, result *harness.Result) error {
	if ctx == nil {
		ctx = context.Background()
	}
	j, err := journal.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := j.Close(); closeErr != nil {
			slog.Error("closing journal", "error", closeErr)
		}
	}()
	return j.RecordOutcome(ctx, result.Run, scenario.Classification, journal.NewClock())
}

func printRunSummary(formatter *OutputFormatter, name string, summary RunSummary) {
	result := summary.Result

	fmt.Fprintf(formatter.Writer, "Scenario %s (run %s)\n", name, result.RunToken)
	fmt.Fprintf(formatter.Writer, "  active units: %d\n", len(result.ActiveUnits))
	for _, ev := range result.Trace {
		switch ev.Stage {
		case "candidate":
			fmt.Fprintf(formatter.Writer, "  %s %s@%s: %s", ev.Stage, ev.Candidate.Name, ev.Candidate.Version, ev.Signal)
			if ev.Rejected {
				fmt.Fprintf(formatter.Writer, " (%s)", ev.RejectReason)
			}
			if ev.Score != 0 {
				fmt.Fprintf(formatter.Writer, " score=%+.2f", ev.Score)
			}
			fmt.Fprintln(formatter.Writer)
		default:
			fmt.Fprintf(formatter.Writer, "  %s: %s\n", ev.Stage, ev.Signal)
		}
	}

	if len(result.Report) > 0 {
		fmt.Fprintln(formatter.Writer, "  report:")
		for _, rec := range result.Report {
			fmt.Fprintf(formatter.Writer, "    [%s] %s: %s\n", rec.Entry.Severity, rec.Unit, rec.Entry.Message)
		}
	}
	if result.Halted {
		fmt.Fprintf(formatter.Writer, "  halted: %s\n", result.HaltReason)
	}

	if len(summary.AssertionFailures) == 0 {
		fmt.Fprintln(formatter.Writer, "✓ all assertions held")
		return
	}
	fmt.Fprintln(formatter.Writer, "✗ assertions failed")
	for _, f := range summary.AssertionFailures {
		fmt.Fprintf(formatter.Writer, "  %s\n", f)
	}
}
