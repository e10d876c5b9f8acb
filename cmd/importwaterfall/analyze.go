package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"importwaterfall/internal/config"
	"importwaterfall/internal/har"
	"importwaterfall/internal/importtime"
	"importwaterfall/internal/observ"
	"importwaterfall/internal/sample"
	"importwaterfall/internal/trace"
	"importwaterfall/internal/waterfall"
)

// unknownVersion stands in for the runtime version of traces read from a
// file.
const unknownVersion = "unknown"

// analyzeEnv carries the process-level collaborators of an analysis.
type analyzeEnv struct {
	stdin         io.Reader
	stdout        io.Writer
	stderr        io.Writer
	sampler       *sample.Sampler
	terminalWidth func() int
	useTUI        bool
}

func analyzeExecution(cmd *cobra.Command, args []string) error {
	opts, err := resolveOptions(cmd, args[0])
	if err != nil {
		return err
	}

	stopProfiling, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer stopProfiling()

	stopTracing, traceToStderr, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	defer stopTracing()

	applyColorMode(opts.color)
	env := analyzeEnv{
		stdin:         cmd.InOrStdin(),
		stdout:        cmd.OutOrStdout(),
		stderr:        cmd.ErrOrStderr(),
		sampler:       sample.New(nil),
		terminalWidth: func() int { return terminalWidth(os.Stdout) },
		useTUI:        shouldUseTUI(opts.ui, traceToStderr),
	}
	return analyze(cmd.Context(), opts, env)
}

// analyze runs acquire, parse and render in sequence.
func analyze(ctx context.Context, opts analyzeOptions, env analyzeEnv) error {
	ctx, span := trace.StartSpan(ctx, trace.ScopeDriver, "importwaterfall")
	defer span.End("")
	timer := observ.NewTimer()

	idx := timer.Begin(observ.StageAcquire)
	res, err := acquire(ctx, opts, env)
	if err != nil {
		return err
	}
	timer.End(idx, acquireNote(opts, res))

	idx = timer.Begin(observ.StageParse)
	tree, stats, err := importtime.Parse(ctx, bytes.NewReader(res.Stderr), importtime.Options{
		Module:         opts.module,
		IncludeStartup: opts.includeStartup,
	})
	if err != nil {
		return err
	}
	timer.End(idx, fmt.Sprintf("%d imports, %d lines skipped", stats.Parsed, stats.Skipped))

	idx = timer.Begin(observ.StageRender)
	_, renderSpan := trace.StartSpan(ctx, trace.ScopePhase, "render")
	err = render(opts, env, tree, res)
	renderSpan.End(string(opts.format))
	if err != nil {
		return err
	}
	timer.End(idx, string(opts.format))

	if opts.timings {
		return timer.WriteSummary(env.stderr)
	}
	return nil
}

func acquireNote(opts analyzeOptions, res *sample.Result) string {
	switch {
	case opts.input != "":
		return "read " + opts.input
	case opts.from != "":
		return "loaded " + opts.from
	default:
		return fmt.Sprintf("best of %d: %s", len(res.Walls), res.Wall())
	}
}

func render(opts analyzeOptions, env analyzeEnv, tree *importtime.Tree, res *sample.Result) error {
	if opts.format == config.FormatHAR {
		runtimeVersion := res.Version
		if runtimeVersion == "" {
			runtimeVersion = unknownVersion
		}
		doc := har.Export(tree, har.Meta{Module: opts.module, RuntimeVersion: runtimeVersion})
		return har.Write(env.stdout, doc)
	}

	filled, empty := waterfall.DefaultStyles()
	return waterfall.Render(env.stdout, tree, waterfall.Options{
		SortByCumulative: opts.sort,
		MaxDepth:         opts.maxDepth,
		HideUnder:        opts.hideUnder,
		Cumulative:       opts.cumulative,
		Width:            barWidth(opts.width, opts.color, env.terminalWidth),
		Filled:           filled,
		Empty:            empty,
	})
}
