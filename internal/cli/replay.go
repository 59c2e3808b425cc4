package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/formulary-sh/formulary/internal/journal"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Journal string
}

// ReplayFiring is one unit firing row in the replay output.
type ReplayFiring struct {
	Unit  string `json:"unit"`
	Fires int    `json:"fires"`
}

// ReplayReportEntry is one report row in the replay output.
type ReplayReportEntry struct {
	Unit     string `json:"unit"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Link     string `json:"link,omitempty"`
}

// ReplayResult is the payload of the replay command.
type ReplayResult struct {
	Token          string              `json:"token"`
	Flavor         string              `json:"flavor"`
	Classification string              `json:"classification,omitempty"`
	Halted         bool                `json:"halted"`
	HaltReason     string              `json:"halt_reason,omitempty"`
	Firings        []ReplayFiring      `json:"firings"`
	Report         []ReplayReportEntry `json:"report"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <run-token>",
		Short: "Print a journaled run",
		Long: `Print a previously journaled run: its outcome, unit firing counts,
and report entries in their original write order.

Exit codes:
  0 - run found and printed
  2 - command error (journal missing, run token unknown)

Examples:
  formulary replay --journal ./runs.db 01890a5d-ac96-774b-bcce-b302099a8057
  formulary replay --journal ./runs.db test-run --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to the SQLite journal (required)")
	_ = cmd.MarkFlagRequired("journal")

	return cmd
}

func runReplay(opts *ReplayOptions, token string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	j, err := journal.Open(opts.Journal)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "open journal", err)
	}
	defer func() {
		if closeErr := j.Close(); closeErr != nil {
			slog.Error("closing journal", "error", closeErr)
		}
	}()

	run, err := j.ReadRun(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("run %q not found", token), nil)
			return NewExitError(ExitCommandError, fmt.Sprintf("run %q not found", token))
		}
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "read run", err)
	}

	firings, err := j.ReadFirings(ctx, token)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "read firings", err)
	}
	report, err := j.ReadReport(ctx, token)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "read report", err)
	}

	result := ReplayResult{
		Token:          run.Token,
		Flavor:         string(run.Flavor),
		Classification: run.Classification,
		Halted:         run.Halted,
		HaltReason:     run.HaltReason,
		Firings:        make([]ReplayFiring, 0, len(firings)),
		Report:         make([]ReplayReportEntry, 0, len(report)),
	}
	for _, f := range firings {
		result.Firings = append(result.Firings, ReplayFiring{Unit: f.Unit.String(), Fires: f.Fires})
	}
	for _, r := range report {
		result.Report = append(result.Report, ReplayReportEntry{
			Unit:     r.Unit.String(),
			Severity: string(r.Entry.Severity),
			Message:  r.Entry.Message,
			Link:     r.Entry.Link,
		})
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "Run %s (flavor %s)\n", result.Token, result.Flavor)
	if result.Classification != "" {
		fmt.Fprintf(formatter.Writer, "  classification: %s\n", result.Classification)
	}
	if result.Halted {
		fmt.Fprintf(formatter.Writer, "  halted: %s\n", result.HaltReason)
	}
	if len(result.Firings) > 0 {
		fmt.Fprintln(formatter.Writer, "  firings:")
		for _, f := range result.Firings {
			fmt.Fprintf(formatter.Writer, "    %s ×%d\n", f.Unit, f.Fires)
		}
	}
	if len(result.Report) > 0 {
		fmt.Fprintln(formatter.Writer, "  report:")
		for _, r := range result.Report {
			fmt.Fprintf(formatter.Writer, "    [%s] %s: %s\n", r.Severity, r.Unit, r.Message)
		}
	}
	return nil
}
