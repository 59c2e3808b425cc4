package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/formulary-sh/formulary/internal/compiler"
	"github.com/formulary-sh/formulary/internal/inclusion"
	"github.com/formulary-sh/formulary/internal/ir"
	"github.com/formulary-sh/formulary/internal/registry"
)

// UnitsOptions holds flags for the units command.
type UnitsOptions struct {
	*RootOptions
	Flavor          string
	Classification  string
	EnvironmentFile string
	UsageFile       string
}

// ActiveUnit is one row of the units command output.
type ActiveUnit struct {
	Unit  string `json:"unit"`
	Times int    `json:"times"`
}

// UnitsResult is the payload of the units command.
type UnitsResult struct {
	Flavor   string       `json:"flavor"`
	Declared int          `json:"declared"`
	Active   []ActiveUnit `json:"active"`
}

// NewUnitsCommand creates the units command.
func NewUnitsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UnitsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "units <docs-dir>",
		Short: "Compute the active unit set",
		Long: `Compute which declared units would be active for a run.

Activation combines each unit's own criteria (repetition cap, pipeline
flavor, classification, library usage, environment) with dependency
closure: a unit is active only if everything it depends on is active.

Examples:
  formulary units ./prescriptions
  formulary units ./prescriptions --flavor exploratory
  formulary units ./prescriptions --environment env.yaml --library-usage usage.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnits(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Flavor, "flavor", string(ir.FlavorAdvisory), "pipeline flavor (advisory|exploratory)")
	cmd.Flags().StringVar(&opts.Classification, "classification", "", "run classification tag")
	cmd.Flags().StringVar(&opts.EnvironmentFile, "environment", "", "YAML file describing the runtime environment")
	cmd.Flags().StringVar(&opts.UsageFile, "library-usage", "", "YAML file with observed symbol usage per package")

	return cmd
}

func runUnits(opts *UnitsOptions, docsDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	flavor := ir.Flavor(opts.Flavor)
	if !flavor.Valid() {
		_ = formatter.Error(ErrCodeGeneric, fmt.Sprintf("unknown flavor %q", opts.Flavor), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown flavor %q", opts.Flavor))
	}

	var environment ir.EnvironmentDescriptor
	if opts.EnvironmentFile != "" {
		if err := readYAMLFile(opts.EnvironmentFile, &environment); err != nil {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitCommandError, "read environment", err)
		}
	}

	var usage ir.LibraryUsage
	if opts.UsageFile != "" {
		if err := readYAMLFile(opts.UsageFile, &usage); err != nil {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitCommandError, "read library usage", err)
		}
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

	reg := registry.New()
	declared := 0
	for _, doc := range docs {
		if err := reg.RegisterDocument(doc); err != nil {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitCommandError, "register documents", err)
		}
		declared += len(doc.All())
	}

	active := inclusion.Resolve(docs, reg, inclusion.Inputs{
		Flavor:         flavor,
		Environment:    environment,
		LibraryUsage:   usage,
		Classification: opts.Classification,
	})

	result := UnitsResult{
		Flavor:   string(flavor),
		Declared: declared,
		Active:   make([]ActiveUnit, 0, len(active)),
	}
	for _, u := range active {
		result.Active = append(result.Active, ActiveUnit{Unit: u.ID().String(), Times: u.Inclusion.Times})
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "%d of %d unit(s) active for flavor %s\n", len(result.Active), declared, flavor)
	for _, au := range result.Active {
		fmt.Fprintf(formatter.Writer, "  %s (times: %d)\n", au.Unit, au.Times)
	}
	return nil
}

func readYAMLFile(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
