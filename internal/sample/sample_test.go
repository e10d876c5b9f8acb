package sample

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"
)

type fakeRun struct {
	wall   time.Duration
	stdout string
	stderr string
	err    error
	block  bool
}

// fakeRunner advances a fake clock by each run's wall time.
type fakeRunner struct {
	now   time.Time
	runs  []fakeRun
	calls []Invocation
}

func (r *fakeRunner) Run(ctx context.Context, inv Invocation) (Output, error) {
	i := len(r.calls)
	r.calls = append(r.calls, inv)
	if i >= len(r.runs) {
		return Output{}, errors.New("unexpected run")
	}
	run := r.runs[i]
	r.now = r.now.Add(run.wall)
	if run.block {
		<-ctx.Done()
		return Output{}, ctx.Err()
	}
	return Output{Stdout: []byte(run.stdout), Stderr: []byte(run.stderr)}, run.err
}

type recordingSink struct {
	events []Event
}

func (s *recordingSink) OnEvent(ev Event) { s.events = append(s.events, ev) }

func newSampler(runner *fakeRunner, sink ProgressSink) *Sampler {
	return &Sampler{Runner: runner, Progress: sink, Now: func() time.Time { return runner.now }}
}

func TestConfigArgv(t *testing.T) {
	got := Config{Module: "pkg.sub"}.Argv()
	want := []string{"python3", "-X", "importtime", "-c", "import pkg.sub"}
	if !slices.Equal(got, want) {
		t.Fatalf("Argv() = %q, want %q", got, want)
	}
	got = Config{Python: "/opt/py/bin/python", Module: "m"}.Argv()
	if got[0] != "/opt/py/bin/python" {
		t.Fatalf("Argv()[0] = %q, want /opt/py/bin/python", got[0])
	}
}

func TestBestOfKeepsFastestRun(t *testing.T) {
	runner := &fakeRunner{runs: []fakeRun{
		{wall: 30 * time.Millisecond, stderr: "first"},
		{wall: 10 * time.Millisecond, stderr: "second"},
		{wall: 20 * time.Millisecond, stderr: "third"},
		{wall: 10 * time.Millisecond, stderr: "fourth"},
	}}
	sink := &recordingSink{}
	res, err := newSampler(runner, sink).BestOf(context.Background(), Config{Module: "pkg", Runs: 4, Env: []string{"A=1"}})
	if err != nil {
		t.Fatalf("BestOf: %v", err)
	}
	if res.Best != 1 || string(res.Stderr) != "second" {
		t.Fatalf("best = %d (%q), want 1 (\"second\")", res.Best, res.Stderr)
	}
	if res.Wall() != 10*time.Millisecond {
		t.Fatalf("Wall() = %s, want 10ms", res.Wall())
	}
	if len(res.Walls) != 4 {
		t.Fatalf("len(Walls) = %d, want 4", len(res.Walls))
	}
	if len(runner.calls) != 4 || !slices.Equal(runner.calls[0].Env, []string{"A=1"}) {
		t.Fatalf("calls = %+v", runner.calls)
	}
	if len(sink.events) != 8 {
		t.Fatalf("got %d events, want 8", len(sink.events))
	}
	last := sink.events[len(sink.events)-1]
	if last.Status != StatusDone || last.Run != 4 || last.Best != 10*time.Millisecond {
		t.Fatalf("last event = %+v", last)
	}
}

func TestBestOfDefaultRuns(t *testing.T) {
	runner := &fakeRunner{}
	for range DefaultRuns {
		runner.runs = append(runner.runs, fakeRun{wall: time.Millisecond})
	}
	res, err := newSampler(runner, nil).BestOf(context.Background(), Config{Module: "pkg"})
	if err != nil {
		t.Fatalf("BestOf: %v", err)
	}
	if len(res.Walls) != DefaultRuns {
		t.Fatalf("len(Walls) = %d, want %d", len(res.Walls), DefaultRuns)
	}
}

func TestBestOfAbortsOnFailure(t *testing.T) {
	exitErr := errors.New("exit status 1")
	runner := &fakeRunner{runs: []fakeRun{
		{wall: time.Millisecond},
		{wall: time.Millisecond, stderr: "Traceback\nModuleNotFoundError: No module named 'nope'\n", err: exitErr},
		{wall: time.Millisecond},
	}}
	sink := &recordingSink{}
	_, err := newSampler(runner, sink).BestOf(context.Background(), Config{Module: "nope", Runs: 3})

	var runErr *RunError
	if !errors.As(err, &runErr) {
		t.Fatalf("err = %v, want *RunError", err)
	}
	if runErr.Run != 2 || !errors.Is(err, exitErr) {
		t.Fatalf("RunError = %+v", runErr)
	}
	if !strings.HasSuffix(err.Error(), "ModuleNotFoundError: No module named 'nope'") {
		t.Fatalf("Error() = %q, want last stderr line", err.Error())
	}
	if len(runner.calls) != 2 {
		t.Fatalf("ran %d times, want 2", len(runner.calls))
	}
	if last := sink.events[len(sink.events)-1]; last.Status != StatusError {
		t.Fatalf("last event status = %s, want error", last.Status)
	}
}

func TestBestOfTimeout(t *testing.T) {
	runner := &fakeRunner{runs: []fakeRun{{block: true}}}
	_, err := newSampler(runner, nil).BestOf(context.Background(), Config{Module: "pkg", Runs: 2, Timeout: 10 * time.Millisecond})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestBestOfRejectsInvalidModule(t *testing.T) {
	runner := &fakeRunner{}
	_, err := newSampler(runner, nil).BestOf(context.Background(), Config{Module: "os; rm -rf /"})
	if !errors.Is(err, ErrInvalidModule) {
		t.Fatalf("err = %v, want ErrInvalidModule", err)
	}
	if len(runner.calls) != 0 {
		t.Fatalf("ran %d times, want 0", len(runner.calls))
	}
}

func TestVersion(t *testing.T) {
	runner := &fakeRunner{runs: []fakeRun{{stdout: "3.12.1 (main, Jan  1 2024)\n"}}}
	got, err := newSampler(runner, nil).Version(context.Background(), Config{Python: "py"})
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if got != "3.12.1 (main, Jan  1 2024)" {
		t.Fatalf("Version = %q", got)
	}
	if argv := runner.calls[0].Argv; argv[0] != "py" || argv[1] != "-c" {
		t.Fatalf("argv = %q", argv)
	}
}

func TestValidModule(t *testing.T) {
	tests := map[string]bool{
		"pkg":          true,
		"pkg.sub":      true,
		"_private.x1":  true,
		"données":      true,
		"":             false,
		"pkg.":         false,
		".pkg":         false,
		"1pkg":         false,
		"pkg-name":     false,
		"pkg sub":      false,
		"pkg;import x": false,
	}
	for name, want := range tests {
		if got := ValidModule(name); got != want {
			t.Fatalf("ValidModule(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestChannelSinkStopsOnDone(t *testing.T) {
	ch := make(chan Event)
	done := make(chan struct{})
	close(done)
	// unbuffered channel with no reader must not block once done is closed
	ChannelSink{Ch: ch, Done: done}.OnEvent(Event{Run: 1})
}
