// Package observ records how long each stage of an importwaterfall run
// takes: acquiring the trace, parsing it and rendering it.
package observ

import (
	"io"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Stage names used by the CLI.
const (
	StageAcquire = "acquire"
	StageParse   = "parse"
	StageRender  = "render"
)

// Phase records the duration and metadata of one stage.
type Phase struct {
	Name  string
	Start time.Time
	Dur   time.Duration
	Note  string
}

// Timer tracks the stages of one invocation.
type Timer struct {
	phases []Phase
	now    func() time.Time
}

// NewTimer creates a new empty Timer.
func NewTimer() *Timer {
	return &Timer{phases: make([]Phase, 0, 4), now: time.Now}
}

// Begin starts a new phase and returns its index.
func (t *Timer) Begin(name string) int {
	t.phases = append(t.phases, Phase{Name: name, Start: t.now()})
	return len(t.phases) - 1
}

// End finishes a phase by its index.
func (t *Timer) End(idx int, note string) {
	if idx < 0 || idx >= len(t.phases) {
		return
	}
	p := &t.phases[idx]
	p.Dur = t.now().Sub(p.Start)
	p.Note = note
}

// PhaseReport is the serializable form of a phase.
type PhaseReport struct {
	Name         string `json:"name"`
	Microseconds int64  `json:"us"`
	Note         string `json:"note,omitempty"`
}

// Report aggregates all phases.
type Report struct {
	TotalMicroseconds int64         `json:"total_us"`
	Phases            []PhaseReport `json:"phases"`
}

// Report returns every phase and their total in microseconds, the unit
// of the import traces themselves.
func (t *Timer) Report() Report {
	report := Report{Phases: make([]PhaseReport, len(t.phases))}
	var total time.Duration
	for i, phase := range t.phases {
		total += phase.Dur
		report.Phases[i] = PhaseReport{
			Name:         phase.Name,
			Microseconds: phase.Dur.Microseconds(),
			Note:         phase.Note,
		}
	}
	report.TotalMicroseconds = total.Microseconds()
	return report
}

var printer = message.NewPrinter(language.English)

// WriteSummary prints a table of phases with thousands separators.
func (t *Timer) WriteSummary(w io.Writer) error {
	report := t.Report()
	if _, err := printer.Fprintf(w, "timings:\n"); err != nil {
		return err
	}
	for _, p := range report.Phases {
		line := printer.Sprintf("  %-10s %12d us", p.Name, p.Microseconds)
		if p.Note != "" {
			line += "  // " + p.Note
		}
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
	}
	_, err := printer.Fprintf(w, "  %-10s %12d us\n", "total", report.TotalMicroseconds)
	return err
}
