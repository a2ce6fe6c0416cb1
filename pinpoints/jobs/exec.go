package jobs

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

// ExecRunner runs jobs through `bash -c`, the way materializer command lines
// are written.
type ExecRunner struct {
	Shell  string    // defaults to "bash"
	Stdout io.Writer // defaults to os.Stdout
	Stderr io.Writer // defaults to os.Stderr
}

// Run executes job and returns its exit status.
func (r ExecRunner) Run(ctx context.Context, job Job) (int, error) {
	shell := r.Shell
	if shell == "" {
		shell = "bash"
	}
	cmd := exec.CommandContext(ctx, shell, "-c", job.Command)
	cmd.Dir = job.Dir
	cmd.Stdout = orDefault(r.Stdout, os.Stdout)
	cmd.Stderr = orDefault(r.Stderr, os.Stderr)
	if len(job.Env) > 0 {
		cmd.Env = append(os.Environ(), job.Env...)
	}
	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	if err != nil {
		return -1, err
	}
	return 0, nil
}

// ListRunner prints each command instead of running it.
type ListRunner struct{}

// Run logs the command and reports success.
func (ListRunner) Run(_ context.Context, job Job) (int, error) {
	logrus.Infof("%s", job.Command)
	return 0, nil
}

func orDefault(w, def io.Writer) io.Writer {
	if w != nil {
		return w
	}
	return def
}

// ShellQuote quotes s for a POSIX shell. Words made only of path-safe
// characters are returned unchanged.
func ShellQuote(s string) string {
	if s != "" && strings.IndexFunc(s, func(r rune) bool {
		return !(r == '/' || r == '.' || r == '-' || r == '_' || r == '+' || r == '=' || r == ':' ||
			('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9'))
	}) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
