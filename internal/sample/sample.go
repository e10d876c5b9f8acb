// Package sample acquires import traces by running the interpreter with
// -X importtime several times in a row and keeping the fastest run.
package sample

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"importwaterfall/internal/trace"
)

// DefaultRuns matches one baseline run followed by five candidates.
const DefaultRuns = 6

// DefaultPython is the interpreter used when none is configured.
const DefaultPython = "python3"

var (
	// ErrTimeout reports that sampling exceeded its wall-clock budget.
	ErrTimeout = errors.New("sampling timed out")
	// ErrInvalidModule reports a module name that is not a dotted path.
	ErrInvalidModule = errors.New("invalid module name")
)

// Config describes one sampling session.
type Config struct {
	Python  string        // interpreter executable
	Module  string        // module to import
	Runs    int           // number of sequential runs, at least 1
	Timeout time.Duration // budget for the whole session, 0 = none
	Env     []string      // extra KEY=VALUE pairs for the interpreter
}

func (c Config) python() string {
	if c.Python == "" {
		return DefaultPython
	}
	return c.Python
}

func (c Config) runs() int {
	if c.Runs < 1 {
		return DefaultRuns
	}
	return c.Runs
}

// Argv returns the command line of a single traced run.
func (c Config) Argv() []string {
	return []string{c.python(), "-X", "importtime", "-c", "import " + c.Module}
}

// Result is the outcome of a sampling session.
type Result struct {
	Stderr  []byte          // trace of the fastest run
	Best    int             // index of the fastest run
	Walls   []time.Duration // wall time of every run, in order
	Version string          // interpreter sys.version, if queried
}

// Wall returns the wall time of the kept run.
func (r *Result) Wall() time.Duration {
	if r == nil || len(r.Walls) == 0 {
		return 0
	}
	return r.Walls[r.Best]
}

// RunError reports an interpreter run that did not exit cleanly.
type RunError struct {
	Run    int // 1-based run number
	Argv   []string
	Stderr []byte
	Err    error
}

func (e *RunError) Error() string {
	cmdline := strings.Join(e.Argv, " ")
	msg := fmt.Sprintf("%s failed: %v", cmdline, e.Err)
	if e.Run > 0 {
		msg = fmt.Sprintf("run %d (%s) failed: %v", e.Run, cmdline, e.Err)
	}
	if tail := lastLine(e.Stderr); tail != "" {
		msg += ": " + tail
	}
	return msg
}

func (e *RunError) Unwrap() error { return e.Err }

func lastLine(b []byte) string {
	b = bytes.TrimRight(b, "\r\n ")
	if i := bytes.LastIndexByte(b, '\n'); i >= 0 {
		b = b[i+1:]
	}
	return string(b)
}

// ValidModule reports whether name is a dotted identifier path.
func ValidModule(name string) bool {
	if name == "" {
		return false
	}
	for part := range strings.SplitSeq(name, ".") {
		if part == "" {
			return false
		}
		for i, r := range part {
			if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
				continue
			}
			return false
		}
	}
	return true
}

// Sampler runs interpreter invocations through a Runner.
type Sampler struct {
	Runner   Runner
	Progress ProgressSink
	// Now is the clock used to time runs; time.Now when nil.
	Now func() time.Time
}

// New returns a Sampler that executes real processes.
func New(progress ProgressSink) *Sampler {
	return &Sampler{Runner: ExecRunner{}, Progress: progress}
}

func (s *Sampler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Sampler) emit(ev Event) {
	if s.Progress != nil {
		s.Progress.OnEvent(ev)
	}
}

// BestOf runs the traced import cfg.Runs times, one after another, and keeps
// the stderr of the run with the lowest wall time. Any failing run aborts
// the session.
func (s *Sampler) BestOf(ctx context.Context, cfg Config) (*Result, error) {
	if !ValidModule(cfg.Module) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidModule, cfg.Module)
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	ctx, span := trace.StartSpan(ctx, trace.ScopePhase, "acquire")
	total := cfg.runs()
	argv := cfg.Argv()
	res := &Result{Walls: make([]time.Duration, 0, total)}

	for i := range total {
		s.emit(Event{Run: i + 1, Total: total, Status: StatusRunning, Best: res.Wall()})
		out, wall, err := s.runOnce(ctx, i+1, argv, cfg.Env)
		if err != nil {
			s.emit(Event{Run: i + 1, Total: total, Status: StatusError, Err: err})
			span.End("failed")
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w after %s (run %d of %d)", ErrTimeout, cfg.Timeout, i+1, total)
			}
			return nil, err
		}
		res.Walls = append(res.Walls, wall)
		if i == 0 || wall < res.Walls[res.Best] {
			res.Best = i
			res.Stderr = out.Stderr
		}
		s.emit(Event{Run: i + 1, Total: total, Status: StatusDone, Wall: wall, Best: res.Wall()})
	}

	span.WithExtra("runs", strconv.Itoa(total)).
		WithExtra("best", res.Wall().String())
	span.End("")
	return res, nil
}

func (s *Sampler) runOnce(ctx context.Context, n int, argv, env []string) (Output, time.Duration, error) {
	_, span := trace.StartSpan(ctx, trace.ScopeRun, "run "+strconv.Itoa(n))
	before := s.now()
	out, err := s.Runner.Run(ctx, Invocation{Argv: argv, Env: env})
	wall := s.now().Sub(before)
	if err != nil {
		span.End(err.Error())
		return out, wall, &RunError{Run: n, Argv: argv, Stderr: out.Stderr, Err: err}
	}
	span.WithExtra("wall", wall.String()).
		WithExtra("stderr_bytes", strconv.Itoa(len(out.Stderr)))
	span.End("")
	return out, wall, nil
}

// versionScript prints the interpreter version without a trailing newline.
const versionScript = "import sys; sys.stdout.write(sys.version)"

// Version asks the interpreter for its sys.version string.
func (s *Sampler) Version(ctx context.Context, cfg Config) (string, error) {
	argv := []string{cfg.python(), "-c", versionScript}
	out, err := s.Runner.Run(ctx, Invocation{Argv: argv, Env: cfg.Env})
	if err != nil {
		return "", &RunError{Argv: argv, Stderr: out.Stderr, Err: err}
	}
	return strings.TrimSpace(string(out.Stdout)), nil
}
