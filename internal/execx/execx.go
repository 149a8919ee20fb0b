// internal/execx/execx.go
package execx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Spec describes one external command invocation.
type Spec struct {
	Argv   []string  // program followed by its arguments
	Dir    string    // working directory; empty inherits the process cwd
	Stdout io.Writer // nil discards
	Stderr io.Writer // nil discards
}

// String renders the invocation the way a shell user would type it.
func (s Spec) String() string { return strings.Join(s.Argv, " ") }

// ExitError reports a command that started but exited non-zero. A negative
// code means the process was terminated by a signal.
type ExitError struct {
	Prog string
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Prog, e.Code)
}

// Runner abstracts process execution so orchestration can be tested without
// spawning the real tools.
type Runner interface {
	// Run executes spec and blocks until it exits.
	Run(ctx context.Context, spec Spec) error
	// RunPipe executes specs left to right with each stdout feeding the next
	// stdin, like a shell pipeline. Only the final spec's Stdout is honoured.
	RunPipe(ctx context.Context, specs ...Spec) error
	// LookPath resolves a program name against PATH.
	LookPath(prog string) (string, error)
}

// System runs commands on the host.
type System struct{}

func (System) LookPath(prog string) (string, error) { return exec.LookPath(prog) }

func (System) Run(ctx context.Context, spec Spec) error {
	cmd, err := build(ctx, spec)
	if err != nil {
		return err
	}
	cmd.Stdout = stdoutOf(spec)
	return asExit(spec, cmd.Run())
}

func (System) RunPipe(ctx context.Context, specs ...Spec) error {
	if len(specs) == 0 {
		return errors.New("empty pipeline")
	}
	cmds := make([]*exec.Cmd, len(specs))
	for i, spec := range specs {
		cmd, err := build(ctx, spec)
		if err != nil {
			return err
		}
		cmds[i] = cmd
	}
	cmds[len(cmds)-1].Stdout = stdoutOf(specs[len(specs)-1])
	for i := 0; i < len(cmds)-1; i++ {
		pipe, err := cmds[i].StdoutPipe()
		if err != nil {
			return fmt.Errorf("pipe after %s: %w", specs[i].Argv[0], err)
		}
		cmds[i+1].Stdin = pipe
	}
	for i, cmd := range cmds {
		if err := cmd.Start(); err != nil {
			// Reap anything already started before giving up.
			for _, started := range cmds[:i] {
				_ = started.Process.Kill()
				_ = started.Wait()
			}
			return fmt.Errorf("start %s: %w", specs[i].Argv[0], err)
		}
	}
	// Wait downstream first so an upstream Wait closing its pipe cannot
	// truncate a consumer still reading.
	errs := make([]error, len(cmds))
	for i := len(cmds) - 1; i >= 0; i-- {
		errs[i] = asExit(specs[i], cmds[i].Wait())
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func build(ctx context.Context, spec Spec) (*exec.Cmd, error) {
	if len(spec.Argv) == 0 {
		return nil, errors.New("empty argv")
	}
	cmd := exec.CommandContext(ctx, spec.Argv[0], spec.Argv[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = os.Environ()
	cmd.Stderr = spec.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = io.Discard
	}
	return cmd, nil
}

func stdoutOf(spec Spec) io.Writer {
	if spec.Stdout == nil {
		return io.Discard
	}
	return spec.Stdout
}

func asExit(spec Spec, err error) error {
	if err == nil {
		return nil
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return &ExitError{Prog: spec.Argv[0], Code: ee.ExitCode()}
	}
	return fmt.Errorf("%s: %w", spec.Argv[0], err)
}
