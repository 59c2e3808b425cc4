package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDocument = `
apiVersion: formulary.dev/v1
kind: prescription
spec:
  name: core
  release: 1
  units:
    sieves:
      - name: drop-yanked-flask
        should_include:
          times: 1
          pipelines: [advisory]
        run:
          match:
            package:
              name: flask
              version: "==1.1.0"
          report:
            - severity: WARNING
              message: flask 1.1.0 was yanked
`

const invalidDocument = `
apiVersion: formulary.dev/v1
kind: prescription
spec:
  name: broken
  release: 1
  units:
    steps:
      - name: contradictory
        should_include:
          times: 1
          pipelines: [advisory]
        run:
          match:
            package:
              name: flask
          reject: go away
          halt: stop everything
`

// response mirrors the JSON envelope with a raw data payload so tests
// can decode command-specific results.
type response struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *ErrorBody      `json:"error"`
}

func writeDocsDir(t *testing.T, docs map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range docs {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func TestValidate_ValidDocuments(t *testing.T) {
	dir := writeDocsDir(t, map[string]string{"core.yaml": validDocument})

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "✓ 1 document(s) valid")
}

func TestValidate_ValidDocumentsJSON(t *testing.T) {
	dir := writeDocsDir(t, map[string]string{"core.yaml": validDocument})

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	require.NoError(t, cmd.Execute())

	var resp response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	var result ValidationResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.True(t, result.Valid)
	assert.Equal(t, 1, result.Documents)
}

func TestValidate_InvalidDocument(t *testing.T) {
	dir := writeDocsDir(t, map[string]string{
		"core.yaml":   validDocument,
		"broken.yaml": invalidDocument,
	})

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	output := buf.String()
	assert.Contains(t, output, "✗ Validation failed")
	assert.Contains(t, output, "broken.yaml")
}

func TestValidate_InvalidDocumentJSON(t *testing.T) {
	dir := writeDocsDir(t, map[string]string{"broken.yaml": invalidDocument})

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)

	var result ValidationResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.False(t, result.Valid)
	require.Len(t, result.Failures, 1)
}

func TestValidate_MissingDirectory(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"/nonexistent/directory/path"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "not found")
}
