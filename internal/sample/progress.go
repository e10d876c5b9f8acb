package sample

import "time"

// Status captures the state of one run.
type Status string

const (
	// StatusRunning indicates the interpreter is executing.
	StatusRunning Status = "running"
	// StatusDone indicates the run finished and was timed.
	StatusDone Status = "done"
	// StatusError indicates the run failed; the session aborts.
	StatusError Status = "error"
)

// Event reports progress of a sampling session.
type Event struct {
	Run    int // 1-based
	Total  int
	Status Status
	Wall   time.Duration // set when Status is StatusDone
	Best   time.Duration // fastest wall time so far
	Err    error
}

// ProgressSink consumes progress events.
type ProgressSink interface {
	OnEvent(Event)
}

// ChannelSink forwards events into a channel. Sends are dropped once Done
// is closed so a vanished consumer cannot stall sampling.
type ChannelSink struct {
	Ch   chan<- Event
	Done <-chan struct{}
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	select {
	case s.Ch <- evt:
	case <-s.Done:
	}
}
