package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/GoSim-25-26J-441/xp-sweep/internal/sweep"
)

var (
	ErrLaunchFailed = errors.New("invocation failed to start")
	ErrNonZeroExit  = errors.New("invocation exited non-zero")
)

// Result describes a finished invocation. ExitCode is -1 when the process
// never started or was killed by a signal.
type Result struct {
	ExitCode int
	Duration time.Duration
}

// Executor runs one planned invocation to completion
type Executor interface {
	Execute(ctx context.Context, inv sweep.Invocation) (Result, error)
}

// ProcessExecutor runs the invocation as a child process and waits for it
type ProcessExecutor struct {
	Dir    string
	Stdout io.Writer
	Stderr io.Writer
	// Timeout bounds a single invocation. Zero waits forever.
	Timeout time.Duration
}

func (e *ProcessExecutor) Execute(ctx context.Context, inv sweep.Invocation) (Result, error) {
	if len(inv.Args) == 0 || inv.Args[0] == "" {
		return Result{ExitCode: -1}, fmt.Errorf("%w: empty command", ErrLaunchFailed)
	}

	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, inv.Args[0], inv.Args[1:]...)
	cmd.Dir = e.Dir
	cmd.Stdout = e.Stdout
	cmd.Stderr = e.Stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("%w: %s: %v", ErrLaunchFailed, inv.Args[0], err)
	}
	err := cmd.Wait()
	res := Result{
		ExitCode: cmd.ProcessState.ExitCode(),
		Duration: time.Since(start),
	}
	if err == nil {
		return res, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, fmt.Errorf("invocation interrupted: %w", ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return res, fmt.Errorf("%w: exit code %d", ErrNonZeroExit, res.ExitCode)
	}
	return res, err
}

// DryRunExecutor prints each command line instead of running it
type DryRunExecutor struct {
	Out io.Writer
}

func (e DryRunExecutor) Execute(_ context.Context, inv sweep.Invocation) (Result, error) {
	if e.Out != nil {
		if _, err := fmt.Fprintln(e.Out, inv.Command()); err != nil {
			return Result{ExitCode: -1}, err
		}
	}
	return Result{}, nil
}
