package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/formulary-sh/formulary/internal/compiler"
)

// Command-level error codes, distinct from the compiler's F1xx
// validation codes.
const (
	ErrCodeGeneric  = "F001"
	ErrCodeNotFound = "F002"
)

// DocumentErrors groups the validation errors of one document.
type DocumentErrors struct {
	Document string                     `json:"document"`
	Errors   []compiler.ValidationError `json:"errors"`
}

// ValidationResult is the payload of the validate command.
type ValidationResult struct {
	Valid     bool             `json:"valid"`
	Documents int              `json:"documents"`
	Failures  []DocumentErrors `json:"failures,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <docs-dir>",
		Short: "Validate prescription documents",
		Long: `Validate every prescription document in a directory.

Runs schema validation and load-time semantic checks (effect
permissions, version specifiers, duplicate units) without starting a
run. Loading is all-or-nothing: one bad document fails the whole set.

Exit codes:
  0 - all documents valid
  1 - validation errors found
  2 - command error (directory missing, unreadable files)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, docsDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if info, err := os.Stat(docsDir); err != nil || !info.IsDir() {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("directory not found: %s", docsDir), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("directory not found: %s", docsDir))
	}

	docs, err := compiler.LoadDir(docsDir)
	if err != nil {
		failures := collectLoadErrors(err)
		if len(failures) == 0 {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitCommandError, "load failed", err)
		}
		return outputValidationFailures(formatter, failures)
	}

	formatter.VerboseLog("Loaded %d document(s) from %s", len(docs), docsDir)

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Documents: len(docs)})
	}
	fmt.Fprintf(formatter.Writer, "✓ %d document(s) valid\n", len(docs))
	return nil
}

// collectLoadErrors flattens the joined error from LoadDir into
// per-document failure groups. Non-LoadError members are reported
// under their error text.
func collectLoadErrors(err error) []DocumentErrors {
	var failures []DocumentErrors
	for _, e := range flatten(err) {
		if le, ok := compiler.IsLoadError(e); ok {
			failures = append(failures, DocumentErrors{Document: le.Name, Errors: le.Errors})
			continue
		}
		failures = append(failures, DocumentErrors{
			Document: "(load)",
			Errors: []compiler.ValidationError{
				{Field: "load", Message: e.Error(), Code: ErrCodeGeneric},
			},
		})
	}
	return failures
}

// flatten unwraps an errors.Join result into its members; a plain
// error is returned as a single-element slice.
func flatten(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}

func outputValidationFailures(formatter *OutputFormatter, failures []DocumentErrors) error {
	total := 0
	for _, f := range failures {
		total += len(f.Errors)
	}

	if formatter.Format == "json" {
		first := failures[0].Errors[0]
		enc := json.NewEncoder(formatter.Writer)
		enc.SetIndent("", "  ")
		if err := enc.Encode(Response{
			Status: "error",
			Data:   ValidationResult{Valid: false, Failures: failures},
			Error:  &ErrorBody{Code: first.Code, Message: first.Message},
		}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", total))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, f := range failures {
		fmt.Fprintf(formatter.Writer, "%s:\n", f.Document)
		for _, e := range f.Errors {
			fmt.Fprintf(formatter.Writer, "  %s\n", e.Error())
		}
		fmt.Fprintln(formatter.Writer)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", total))
}
