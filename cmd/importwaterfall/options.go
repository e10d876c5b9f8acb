package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"importwaterfall/internal/config"
	"importwaterfall/internal/sample"
)

func init() {
	registerAnalyzeFlags(rootCmd)
}

func registerAnalyzeFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Bool("include-interpreter-startup", false, "keep imports the interpreter performs before the module")
	f.Bool("graph", false, "print a waterfall of self times (default)")
	f.Bool("har", false, "print a HAR document")
	f.Bool("cumulative", false, "print a waterfall scaled by cumulative time")
	f.Bool("sort", false, "order siblings by cumulative time, largest first")
	f.Int("max-depth", 0, "do not print imports at this depth or deeper (0 = unlimited)")
	f.Int64("hide-under", 0, "hide imports whose cumulative time is below this (0 = show all)")
	f.Int("width", 0, "bar width in cells (0 = terminal width, -1 = no bars)")
	f.Int("runs", sample.DefaultRuns, "number of sequential runs; the fastest is kept")
	f.String("python", sample.DefaultPython, "python interpreter to profile")
	f.Duration("timeout", 0, "give up sampling after this long (0 = never)")
	f.String("input", "", "read a raw importtime trace from file instead of running python (- for stdin)")
	f.String("from", "", "render a capture saved with --save")
	f.String("save", "", "save the sampled trace to a capture file")
	f.String("ui", "auto", "show sampling progress (auto|on|off)")

	cmd.MarkFlagsMutuallyExclusive("graph", "har", "cumulative")
	cmd.MarkFlagsMutuallyExclusive("input", "from")
	cmd.MarkFlagsMutuallyExclusive("input", "save")
	cmd.MarkFlagsMutuallyExclusive("from", "save")
}

// analyzeOptions is the fully resolved configuration of one invocation.
type analyzeOptions struct {
	module         string
	includeStartup bool
	format         config.Format
	cumulative     bool
	sort           bool
	maxDepth       int
	hideUnder      int64
	width          int
	color          string
	ui             uiMode
	timings        bool
	input          string
	from           string
	save           string
	sample         sample.Config
}

// resolveOptions layers explicitly set flags over the config file.
func resolveOptions(cmd *cobra.Command, module string) (analyzeOptions, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return analyzeOptions{}, fmt.Errorf("failed to get config flag: %w", err)
	}
	cfg, err := config.Discover(configPath, ".")
	if err != nil {
		return analyzeOptions{}, err
	}

	opts := analyzeOptions{
		module:         module,
		includeStartup: cfg.Render.IncludeStartup,
		format:         cfg.Render.Format,
		cumulative:     cfg.Render.Cumulative,
		sort:           cfg.Render.Sort,
		maxDepth:       cfg.Render.MaxDepth,
		hideUnder:      cfg.Render.HideUnder,
		width:          cfg.Render.Width,
		color:          cfg.Render.Color,
		sample: sample.Config{
			Python:  cfg.Sample.Python,
			Module:  module,
			Runs:    cfg.Sample.Runs,
			Timeout: cfg.Sample.Timeout.Duration,
			Env:     cfg.Sample.Env,
		},
	}

	fl := flagReader{cmd: cmd}
	fl.boolVar(&opts.includeStartup, "include-interpreter-startup")
	fl.boolVar(&opts.sort, "sort")
	fl.intVar(&opts.maxDepth, "max-depth")
	fl.int64Var(&opts.hideUnder, "hide-under")
	fl.intVar(&opts.width, "width")
	fl.stringVar(&opts.color, "color")
	fl.intVar(&opts.sample.Runs, "runs")
	fl.stringVar(&opts.sample.Python, "python")
	fl.durationVar(&opts.sample.Timeout, "timeout")
	fl.stringVar(&opts.input, "input")
	fl.stringVar(&opts.from, "from")
	fl.stringVar(&opts.save, "save")

	var graph, har, cumulative bool
	fl.boolVar(&graph, "graph")
	fl.boolVar(&har, "har")
	fl.boolVar(&cumulative, "cumulative")
	switch {
	case har:
		opts.format = config.FormatHAR
	case cumulative:
		opts.format = config.FormatGraph
		opts.cumulative = true
	case graph:
		opts.format = config.FormatGraph
		opts.cumulative = false
	}

	uiValue := "auto"
	fl.stringVar(&uiValue, "ui")
	fl.boolVar(&opts.timings, "timings")
	if fl.err != nil {
		return analyzeOptions{}, fl.err
	}

	if opts.ui, err = readUIMode(uiValue); err != nil {
		return analyzeOptions{}, err
	}
	if err := opts.validate(); err != nil {
		return analyzeOptions{}, err
	}
	return opts, nil
}

func (o *analyzeOptions) validate() error {
	if o.input == "" && !sample.ValidModule(o.module) {
		return fmt.Errorf("%w: %q", sample.ErrInvalidModule, o.module)
	}
	if o.maxDepth < 0 {
		return fmt.Errorf("--max-depth must not be negative, got %d", o.maxDepth)
	}
	if o.hideUnder < 0 {
		return fmt.Errorf("--hide-under must not be negative, got %d", o.hideUnder)
	}
	if o.sample.Runs < 1 {
		return fmt.Errorf("--runs must be at least 1, got %d", o.sample.Runs)
	}
	if o.sample.Timeout < 0 {
		return fmt.Errorf("--timeout must not be negative, got %s", o.sample.Timeout)
	}
	switch o.color {
	case "auto", "on", "off":
	default:
		return fmt.Errorf("invalid --color value %q (expected auto|on|off)", o.color)
	}
	if o.save != "" {
		if _, err := os.Stat(o.save); err == nil {
			return fmt.Errorf("--save target %s already exists", o.save)
		}
	}
	return nil
}

// flagReader copies flags that were set on the command line, remembering
// the first lookup error.
type flagReader struct {
	cmd *cobra.Command
	err error
}

func (r *flagReader) changed(name string) bool {
	if r.err != nil {
		return false
	}
	f := r.cmd.Flags().Lookup(name)
	if f == nil {
		r.err = fmt.Errorf("failed to get %s flag: not defined", name)
		return false
	}
	return f.Changed
}

func (r *flagReader) boolVar(dst *bool, name string) {
	if !r.changed(name) {
		return
	}
	v, err := r.cmd.Flags().GetBool(name)
	r.store(name, err, func() { *dst = v })
}

func (r *flagReader) intVar(dst *int, name string) {
	if !r.changed(name) {
		return
	}
	v, err := r.cmd.Flags().GetInt(name)
	r.store(name, err, func() { *dst = v })
}

func (r *flagReader) int64Var(dst *int64, name string) {
	if !r.changed(name) {
		return
	}
	v, err := r.cmd.Flags().GetInt64(name)
	r.store(name, err, func() { *dst = v })
}

func (r *flagReader) stringVar(dst *string, name string) {
	if !r.changed(name) {
		return
	}
	v, err := r.cmd.Flags().GetString(name)
	r.store(name, err, func() { *dst = v })
}

func (r *flagReader) durationVar(dst *time.Duration, name string) {
	if !r.changed(name) {
		return
	}
	v, err := r.cmd.Flags().GetDuration(name)
	r.store(name, err, func() { *dst = v })
}

func (r *flagReader) store(name string, err error, set func()) {
	if err != nil {
		r.err = fmt.Errorf("failed to get %s flag: %w", name, err)
		return
	}
	set()
}
