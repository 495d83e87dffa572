package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goalline/internal/app"
)

func TestSyncFileWritesCanonicalText(t *testing.T) {
	dir := t.TempDir()
	ws, err := app.Open(context.Background(), dir, app.Overrides{Timezone: "UTC", LogLevel: "error"})
	require.NoError(t, err)
	defer ws.Close()

	path := filepath.Join(dir, "goals.txt")
	require.NoError(t, os.WriteFile(path, []byte("Trip\n\tPack bags\n"), 0o644))
	require.NoError(t, syncFile(context.Background(), ws.Engine, path, false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "Trip  # "))
	assert.True(t, strings.HasPrefix(lines[1], "    Pack bags  # "))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, syncFile(context.Background(), ws.Engine, path, false))
	again, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, info.ModTime(), again.ModTime())
}

func TestSyncFileIgnoresEmptyFile(t *testing.T) {
	dir := t.TempDir()
	ws, err := app.Open(context.Background(), dir, app.Overrides{Timezone: "UTC", LogLevel: "error"})
	require.NoError(t, err)
	defer ws.Close()

	path := filepath.Join(dir, "goals.txt")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	require.NoError(t, syncFile(context.Background(), ws.Engine, path, false))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestReadInputFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.txt")
	require.NoError(t, os.WriteFile(path, []byte("A\n"), 0o644))
	text, err := readInput([]string{path})
	require.NoError(t, err)
	assert.Equal(t, "A\n", text)
	assert.Equal(t, "", optionalArg(nil))
}
