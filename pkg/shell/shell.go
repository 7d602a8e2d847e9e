// Package shell runs command lines through a superuser shell and captures
// their exit code and stdout.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

const DefaultShell = "sh"

// Command is a single shell command line, optionally run from Dir.
type Command struct {
	Dir  string
	Line string
}

func (c Command) String() string {
	if c.Dir == "" {
		return c.Line
	}
	return "cd " + Quote(c.Dir) + " && " + c.Line
}

// Result holds the exit code and the captured stdout lines of a command.
// A non-zero exit code is not an error: callers interpret it.
type Result struct {
	Code   int
	Out    []string
	Stderr string
}

// First returns the first stdout line.
func (r Result) First() (string, bool) {
	if len(r.Out) == 0 {
		return "", false
	}
	return r.Out[0], true
}

// Runner executes command lines with root-equivalent privilege.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// SuRunner runs command lines through `su -c`. With an empty Su it runs them
// through the plain shell, for processes that already hold root.
//
// A command that has started is never killed on context cancellation; the
// context is only checked before the process is spawned.
type SuRunner struct {
	Su    string
	Shell string
}

var execCommand = exec.Command

func (r SuRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	line := cmd.String()
	var c *exec.Cmd
	if strings.TrimSpace(r.Su) == "" {
		sh := r.Shell
		if sh == "" {
			sh = DefaultShell
		}
		c = execCommand(sh, "-c", line)
	} else {
		c = execCommand(r.Su, "-c", line)
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	res := Result{}
	if err := c.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return Result{}, fmt.Errorf("run %q: %w", cmd.Line, err)
		}
		res.Code = exitErr.ExitCode()
	}
	res.Out = splitLines(stdout.String())
	res.Stderr = strings.TrimSpace(stderr.String())
	return res, nil
}

// Quote single-quotes s for POSIX shells.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.IndexFunc(s, needsQuote) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func needsQuote(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	}
	return !strings.ContainsRune("-_./=:,+@%", r)
}

// Join quotes each argument and joins them into one command line.
func Join(args ...string) string {
	quoted := make([]string, len(args))
	for i, arg := range args {
		quoted[i] = Quote(arg)
	}
	return strings.Join(quoted, " ")
}

func splitLines(out string) []string {
	out = strings.TrimRight(out, "\n")
	if out == "" {
		return nil
	}
	lines := strings.Split(out, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, "\r")
	}
	return lines
}
