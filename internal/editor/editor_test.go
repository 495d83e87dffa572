package editor_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goalline/internal/editor"
)

func TestEditReturnsSavedText(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no shell")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "fake-editor.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nprintf 'Edited goal\\n    Child\\n\\n' > \"$1\"\n"), 0o755))

	ed := editor.Editor{Command: script, Dir: dir}
	out, err := ed.Edit(context.Background(), "tasks", "Original goal")
	require.NoError(t, err)
	assert.Equal(t, "Edited goal\n    Child", out)

	left, err := filepath.Glob(filepath.Join(dir, "goalline-tasks-*"))
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestEditUnchangedText(t *testing.T) {
	if _, err := os.Stat("/bin/true"); err != nil {
		t.Skip("no /bin/true")
	}
	ed := editor.Editor{Command: "/bin/true", Dir: t.TempDir()}
	out, err := ed.Edit(context.Background(), "schedule", "20240105\n    Dentist  \n")
	require.NoError(t, err)
	assert.Equal(t, "20240105\n    Dentist", out)
}

func TestEditFailingCommand(t *testing.T) {
	if _, err := os.Stat("/bin/false"); err != nil {
		t.Skip("no /bin/false")
	}
	ed := editor.Editor{Command: "/bin/false", Dir: t.TempDir()}
	_, err := ed.Edit(context.Background(), "mission", "x")
	assert.Error(t, err)
}

func TestEditEmptyCommand(t *testing.T) {
	_, err := editor.Editor{Command: "  "}.Edit(context.Background(), "tasks", "x")
	assert.Error(t, err)
}
