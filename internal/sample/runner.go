package sample

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// Invocation is one interpreter command line.
type Invocation struct {
	Argv []string
	Env  []string // appended to the current environment
}

// Output holds what an invocation wrote.
type Output struct {
	Stdout []byte
	Stderr []byte
}

// Runner executes an invocation to completion.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (Output, error)
}

// ExecRunner runs invocations as child processes.
type ExecRunner struct{}

// Run starts the process, waits for it and returns its output. A non-zero
// exit status is an error.
func (ExecRunner) Run(ctx context.Context, inv Invocation) (Output, error) {
	if len(inv.Argv) == 0 {
		return Output{}, errors.New("empty command line")
	}
	cmd := exec.CommandContext(ctx, inv.Argv[0], inv.Argv[1:]...)
	if len(inv.Env) > 0 {
		cmd.Env = append(os.Environ(), inv.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return out, fmt.Errorf("%w: %w", ctxErr, err)
		}
		return out, err
	}
	return out, nil
}
