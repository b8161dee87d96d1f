package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
	"unicode"
)

// ShellRunner executes the command of a shell rule.
//
// Run writes input to the command's stdin, closes it, and returns stdout
// with trailing whitespace removed. It must return within timeout (plus a
// small kill margin) and must stop early when ctx is cancelled.
// Implementations are called concurrently from many requests.
type ShellRunner interface {
	Run(ctx context.Context, ruleID, command, input string, timeout time.Duration) (string, error)
}

// waitDelay bounds how long Run waits for output pipes after the process
// has been killed. A grandchild that inherited stdout cannot hold the
// request open past this.
const waitDelay = 250 * time.Millisecond

// maxStderr caps the diagnostic output kept in a trace.
const maxStderr = 4096

// ExecShell runs commands with `sh -c`. Each call is an independent
// process in its own process group; there is no shared lock.
type ExecShell struct {
	// Shell is the interpreter. Defaults to "sh".
	Shell string
}

// Run implements ShellRunner.
func (s ExecShell) Run(ctx context.Context, ruleID, command, input string, timeout time.Duration) (string, error) {
	shell := s.Shell
	if shell == "" {
		shell = "sh"
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, shell, "-c", command)
	cmd.Stdin = strings.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay
	configureProcessGroup(cmd)

	err := cmd.Run()

	switch {
	case err == nil:
		return strings.TrimRightFunc(stdout.String(), unicode.IsSpace), nil

	case ctx.Err() != nil:
		return "", &ExecError{
			Code:    ErrCodeShellCancelled,
			RuleID:  ruleID,
			Message: "request cancelled, command killed",
			Err:     ctx.Err(),
		}

	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return "", &ExecError{
			Code:    ErrCodeShellTimeout,
			RuleID:  ruleID,
			Message: fmt.Sprintf("command exceeded %s and was killed", timeout),
			Err:     runCtx.Err(),
		}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return "", &ExecError{
			Code:     ErrCodeShellExit,
			RuleID:   ruleID,
			Message:  fmt.Sprintf("command exited with status %d", exitErr.ExitCode()),
			ExitCode: exitErr.ExitCode(),
			Stderr:   truncate(strings.TrimSpace(stderr.String()), maxStderr),
			Err:      err,
		}
	}

	return "", &ExecError{
		Code:    ErrCodeShellSpawn,
		RuleID:  ruleID,
		Message: "command could not be started",
		Err:     err,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
