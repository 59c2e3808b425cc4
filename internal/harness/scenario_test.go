package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formulary-sh/formulary/internal/ir"
)

// createTestDocument drops a placeholder document file so scenario
// path validation passes. Content is irrelevant; LoadScenario only
// checks existence.
func createTestDocument(t *testing.T, dir, name string) string {
	t.Helper()
	docsDir := filepath.Join(dir, "docs")
	if err := os.MkdirAll(docsDir, 0755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(docsDir, name)
	if err := os.WriteFile(path, []byte("# placeholder"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	dir := t.TempDir()
	createTestDocument(t, dir, "core.yaml")
	scenarioPath := filepath.Join(dir, "test.yaml")

	content := `
name: test_scenario
description: "Drives one candidate through the pipeline"
documents:
  - docs/core.yaml
candidates:
  - package:
      name: flask
      version: 1.1.0
      index: https://pypi.org/simple
assertions:
  - type: not_halted
`
	require.NoError(t, os.WriteFile(scenarioPath, []byte(content), 0644))

	scenario, err := LoadScenario(scenarioPath)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Len(t, scenario.Documents, 1)
	assert.Equal(t, filepath.Join(dir, "docs", "core.yaml"), scenario.Documents[0])
	assert.Len(t, scenario.Candidates, 1)
	assert.Equal(t, "flask", scenario.Candidates[0].Package.Name)

	// Defaults applied during validation.
	assert.Equal(t, ir.FlavorAdvisory, scenario.Flavor)
	assert.Equal(t, "test-run", scenario.RunToken)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read scenario")
}

func TestLoadScenario_UnknownFieldRejected(t *testing.T) {
	dir := t.TempDir()
	createTestDocument(t, dir, "core.yaml")
	scenarioPath := filepath.Join(dir, "test.yaml")

	content := `
name: typo_scenario
documents:
  - docs/core.yaml
candidatez:
  - package: {name: flask, version: 1.0.0}
`
	require.NoError(t, os.WriteFile(scenarioPath, []byte(content), 0644))

	_, err := LoadScenario(scenarioPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse scenario")
}

func TestLoadScenario_ValidationErrors(t *testing.T) {
	dir := t.TempDir()
	docPath := createTestDocument(t, dir, "core.yaml")

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing name",
			content: "documents:\n  - " + docPath + "\n",
			wantErr: "name is required",
		},
		{
			name:    "no documents",
			content: "name: empty\n",
			wantErr: "documents list is required",
		},
		{
			name:    "document not found",
			content: "name: missing\ndocuments:\n  - docs/nope.yaml\n",
			wantErr: "document not found",
		},
		{
			name:    "unknown flavor",
			content: "name: bad-flavor\nflavor: turbo\ndocuments:\n  - " + docPath + "\n",
			wantErr: `unknown flavor "turbo"`,
		},
		{
			name: "candidate without version",
			content: "name: bad-candidate\ndocuments:\n  - " + docPath + "\n" +
				"candidates:\n  - package: {name: flask}\n",
			wantErr: "package version is required",
		},
		{
			name: "unknown assertion type",
			content: "name: bad-assert\ndocuments:\n  - " + docPath + "\n" +
				"assertions:\n  - type: trace_glows\n",
			wantErr: `unknown assertion type "trace_glows"`,
		},
		{
			name: "report_contains without message",
			content: "name: bad-assert\ndocuments:\n  - " + docPath + "\n" +
				"assertions:\n  - type: report_contains\n    unit: core.x/step\n",
			wantErr: "unit and message are required",
		},
		{
			name: "candidate_yields without yielded",
			content: "name: bad-assert\ndocuments:\n  - " + docPath + "\n" +
				"assertions:\n  - type: candidate_yields\n    package: flask\n",
			wantErr: "package and yielded are required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scenarioPath := filepath.Join(t.TempDir(), "scenario.yaml")
			require.NoError(t, os.WriteFile(scenarioPath, []byte(tt.content), 0644))

			_, err := LoadScenario(scenarioPath)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_AbsoluteDocumentPathsKept(t *testing.T) {
	dir := t.TempDir()
	docPath := createTestDocument(t, dir, "core.yaml")
	scenarioPath := filepath.Join(dir, "test.yaml")

	content := "name: abs\ndocuments:\n  - " + docPath + "\n"
	require.NoError(t, os.WriteFile(scenarioPath, []byte(content), 0644))

	scenario, err := LoadScenario(scenarioPath)
	require.NoError(t, err)
	assert.Equal(t, docPath, scenario.Documents[0])
}
