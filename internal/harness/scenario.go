package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/formulary-sh/formulary/internal/ir"
)

// Scenario scripts one run of the six-stage pipeline: which documents
// to load, the run inputs that drive inclusion, and the candidate
// stream the driver feeds through the call sites.
type Scenario struct {
	// Name uniquely identifies this scenario; golden files are keyed
	// on it.
	Name string `yaml:"name"`

	// Description explains what this scenario exercises.
	Description string `yaml:"description"`

	// Documents lists paths to prescription documents, relative to the
	// scenario file unless absolute.
	Documents []string `yaml:"documents"`

	// Flavor selects the pipeline variant. Defaults to advisory.
	Flavor ir.Flavor `yaml:"flavor,omitempty"`

	// Classification tags the run for inclusion filtering.
	Classification string `yaml:"classification,omitempty"`

	// Environment describes the target runtime environment.
	Environment ir.EnvironmentDescriptor `yaml:"environment,omitempty"`

	// LibraryUsage is the observed symbol usage report.
	LibraryUsage ir.LibraryUsage `yaml:"library_usage,omitempty"`

	// Direct lists the direct input package names boots match against.
	Direct []string `yaml:"direct,omitempty"`

	// Candidates is the scripted candidate stream. Each entry carries
	// the resolved state in effect when the candidate is evaluated.
	Candidates []CandidateStep `yaml:"candidates,omitempty"`

	// FinalStates are completed candidate stacks fed to stride units.
	FinalStates []StateStep `yaml:"final_states,omitempty"`

	// AcceptedStates are accepted candidate stacks fed to wrap units.
	AcceptedStates []StateStep `yaml:"accepted_states,omitempty"`

	// RunToken fixes the run token for deterministic golden output.
	// Empty defaults to "test-run".
	RunToken string `yaml:"run_token,omitempty"`

	// Assertions validate the result after the drive completes.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Assertion validates one aspect of a scenario result.
type Assertion struct {
	// Type selects the check:
	//   - "halted": run halted with the given reason
	//   - "not_halted": run completed without halting
	//   - "report_contains": report holds an entry from unit with message
	//   - "report_count": report holds exactly count entries
	//   - "candidate_filtered": a sieve removed the named candidate
	//   - "candidate_rejected": the named candidate was rejected
	//   - "candidate_score": the named candidate accumulated score
	//   - "candidate_yields": the named candidate yielded a substitute
	//   - "active_units": the active set is exactly units, in order
	Type string `yaml:"type"`

	// Reason is the expected halt or reject reason, when applicable.
	Reason string `yaml:"reason,omitempty"`

	// Unit is a unit identity string "namespace.name/kind".
	Unit string `yaml:"unit,omitempty"`

	// Message is the expected report message.
	Message string `yaml:"message,omitempty"`

	// Count is the expected number of report entries.
	Count int `yaml:"count,omitempty"`

	// Package names the candidate the assertion applies to.
	Package string `yaml:"package,omitempty"`

	// Score is the expected accumulated candidate score.
	Score float64 `yaml:"score,omitempty"`

	// Yielded is the expected substitute candidate.
	Yielded *ir.Candidate `yaml:"yielded,omitempty"`

	// Units is the expected active unit list, identity strings in
	// declaration order.
	Units []string `yaml:"units,omitempty"`
}

// Assertion type constants.
const (
	AssertHalted            = "halted"
	AssertNotHalted         = "not_halted"
	AssertReportContains    = "report_contains"
	AssertReportCount       = "report_count"
	AssertCandidateFiltered = "candidate_filtered"
	AssertCandidateRejected = "candidate_rejected"
	AssertCandidateScore    = "candidate_score"
	AssertCandidateYields   = "candidate_yields"
	AssertActiveUnits       = "active_units"
)

// CandidateStep is one scripted candidate evaluation: the candidate
// itself plus the state resolved so far on its path.
type CandidateStep struct {
	Package ir.Candidate       `yaml:"package"`
	State   []ir.ResolvedEntry `yaml:"state,omitempty"`
}

// StateStep is one candidate stack fed to state-only call sites.
type StateStep struct {
	Resolved []ir.ResolvedEntry `yaml:"resolved"`
}

// LoadScenario reads and parses a scenario YAML file, resolving
// document paths relative to the scenario's directory. Unknown fields
// are rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}

	base := filepath.Dir(path)
	for i, doc := range scenario.Documents {
		if !filepath.IsAbs(doc) {
			scenario.Documents[i] = filepath.Join(base, doc)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Documents) == 0 {
		return fmt.Errorf("documents list is required and must be non-empty")
	}
	for _, doc := range s.Documents {
		if _, err := os.Stat(doc); os.IsNotExist(err) {
			return fmt.Errorf("document not found: %s", doc)
		}
	}

	if s.Flavor == "" {
		s.Flavor = ir.FlavorAdvisory
	}
	if !s.Flavor.Valid() {
		return fmt.Errorf("unknown flavor %q", s.Flavor)
	}

	for i, step := range s.Candidates {
		if step.Package.Name == "" {
			return fmt.Errorf("candidates[%d]: package name is required", i)
		}
		if step.Package.Version == "" {
			return fmt.Errorf("candidates[%d]: package version is required", i)
		}
	}

	if s.RunToken == "" {
		s.RunToken = "test-run"
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertHalted, AssertNotHalted, AssertReportCount:
	case AssertReportContains:
		if a.Unit == "" || a.Message == "" {
			return fmt.Errorf("assertions[%d]: unit and message are required for report_contains", index)
		}
	case AssertCandidateFiltered, AssertCandidateRejected, AssertCandidateScore:
		if a.Package == "" {
			return fmt.Errorf("assertions[%d]: package is required for %s", index, a.Type)
		}
	case AssertCandidateYields:
		if a.Package == "" || a.Yielded == nil {
			return fmt.Errorf("assertions[%d]: package and yielded are required for candidate_yields", index)
		}
	case AssertActiveUnits:
		if len(a.Units) == 0 {
			return fmt.Errorf("assertions[%d]: units list is required for active_units", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
