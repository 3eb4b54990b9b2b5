package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/parley/internal/adapters/file"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWorkflow(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestRunValidate(t *testing.T) {
	dir := t.TempDir()
	writeWorkflow(t, dir, "good.json", `{"startNode": "a", "nodes": [
		{"id": "a", "question": "Go?", "questionType": "Options", "answers": [{"response": "Yes", "nextNode": "b"}]},
		{"id": "b", "question": "Done", "questionType": "Terminal"}]}`)
	writeWorkflow(t, dir, "broken.yaml", "startNode: a\nnodes:\n  - id: a\n    question: Go?\n    answers:\n      - response: Yes\n        nextNode: ghost\n")

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	err := runValidate(cmd, file.New(dir), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2")
	assert.Contains(t, out.String(), "good.json: valid")
	assert.Contains(t, out.String(), "broken.yaml: found 1 errors")
	assert.Contains(t, out.String(), "a -> ghost")

	out.Reset()
	require.NoError(t, runValidate(cmd, file.New(dir), []string{"good.json"}))
}

func TestRunValidate_EmptyDir(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})
	assert.Error(t, runValidate(cmd, file.New(t.TempDir()), nil))
}
