package editor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"go.uber.org/zap"
)

// Editor hands a document to an external command and reads back what the user saved.
type Editor struct {
	// Command is split on whitespace; the file path is appended as the last argument.
	Command string
	// Dir holds the scratch files. Empty means the system temp dir.
	Dir string
	Log *zap.Logger

	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File
}

// Edit writes text to a scratch file named after name, runs the editor on it and returns
// the saved content with trailing whitespace trimmed.
func (e Editor) Edit(ctx context.Context, name, text string) (string, error) {
	args := strings.Fields(e.Command)
	if len(args) == 0 {
		return "", fmt.Errorf("editor command is empty")
	}
	f, err := os.CreateTemp(e.Dir, "goalline-"+name+"-*.txt")
	if err != nil {
		return "", err
	}
	path := f.Name()
	f.Close()
	defer os.Remove(path)

	if err := atomic.WriteFile(path, strings.NewReader(text)); err != nil {
		return "", fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	log := e.logger().With(zap.String("editor", args[0]), zap.String("file", path))
	log.Debug("launching editor")

	cmd := exec.CommandContext(ctx, args[0], append(args[1:], path)...)
	cmd.Stdin = pick(e.Stdin, os.Stdin)
	cmd.Stdout = pick(e.Stdout, os.Stdout)
	cmd.Stderr = pick(e.Stderr, os.Stderr)
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("run editor %s: %w", args[0], err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	log.Debug("editor closed", zap.Int("bytes", len(data)))
	return strings.TrimRight(string(data), " \t\r\n"), nil
}

func (e Editor) logger() *zap.Logger {
	if e.Log == nil {
		return zap.NewNop()
	}
	return e.Log
}

func pick(f, fallback *os.File) *os.File {
	if f != nil {
		return f
	}
	return fallback
}
