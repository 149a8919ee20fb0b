// internal/stage/stage.go
package stage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	logging "github.com/op/go-logging"

	"shearwater/internal/execx"
)

var log = logging.MustGetLogger("shearwater")

// Descriptor is one immutable pipeline step: a command (or a short pipe of
// commands), the files it needs, and the files it promises.
type Descriptor struct {
	Name     string
	Desc     string
	Commands [][]string // more than one means a stdout→stdin pipe
	Inputs   []string   // folder-relative, verified before launch
	Outputs  []string   // folder-relative, informational
	StdoutTo string     // folder-relative redirect for the last command
}

// Command renders the step the way a shell user would type it.
func (d Descriptor) Command() string {
	parts := make([]string, len(d.Commands))
	for i, argv := range d.Commands {
		parts[i] = strings.Join(argv, " ")
	}
	s := strings.Join(parts, " | ")
	if d.StdoutTo != "" {
		s += " > " + d.StdoutTo
	}
	return s
}

// Error reports a stage whose command chain failed. Code is -1 when the
// chain never produced an exit status.
type Error struct {
	Stage string
	Code  int
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("stage %s failed (exit code %d): %v", e.Stage, e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Observer receives stage lifecycle events; the orchestrator uses it to
// journal progress.
type Observer interface {
	StageStarted(d Descriptor)
	StageEnded(d Descriptor, code int, err error, elapsed time.Duration)
}

// NopObserver ignores all events.
type NopObserver struct{}

func (NopObserver) StageStarted(Descriptor)                          {}
func (NopObserver) StageEnded(Descriptor, int, error, time.Duration) {}

// Runner executes stages strictly in order inside one folder, stopping at
// the first failure.
type Runner struct {
	Exec execx.Runner
	Dir  string    // working directory for every stage
	Sink io.Writer // external tool stdout/stderr chatter
	Obs  Observer
}

// RunAll executes script sequentially. Every declared input must exist
// before its stage launches; a missing one means an upstream stage broke
// its contract and the run aborts.
func (r *Runner) RunAll(ctx context.Context, script []Descriptor) error {
	obs := r.Obs
	if obs == nil {
		obs = NopObserver{}
	}
	for _, d := range script {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.checkInputs(d); err != nil {
			return &Error{Stage: d.Name, Code: -1, Err: err}
		}
		log.Infof("%s", d.Desc)
		log.Infof("Running: %s", d.Command())
		obs.StageStarted(d)
		start := time.Now()
		err := r.runOne(ctx, d)
		code := exitCode(err)
		obs.StageEnded(d, code, err, time.Since(start))
		if err != nil {
			return &Error{Stage: d.Name, Code: code, Err: err}
		}
	}
	return nil
}

func (r *Runner) runOne(ctx context.Context, d Descriptor) error {
	specs := make([]execx.Spec, len(d.Commands))
	for i, argv := range d.Commands {
		specs[i] = execx.Spec{Argv: argv, Dir: r.Dir, Stdout: r.Sink, Stderr: r.Sink}
	}

	var out *os.File
	if d.StdoutTo != "" {
		f, err := os.Create(filepath.Join(r.Dir, d.StdoutTo))
		if err != nil {
			return err
		}
		out = f
		specs[len(specs)-1].Stdout = f
	}

	var err error
	if len(specs) == 1 {
		err = r.Exec.Run(ctx, specs[0])
	} else {
		err = r.Exec.RunPipe(ctx, specs...)
	}
	if out != nil {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func (r *Runner) checkInputs(d Descriptor) error {
	for _, name := range d.Inputs {
		if _, err := os.Stat(filepath.Join(r.Dir, name)); err != nil {
			return fmt.Errorf("missing input %s", name)
		}
	}
	return nil
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *execx.ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return -1
}
