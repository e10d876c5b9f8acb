package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"importwaterfall/internal/capture"
	"importwaterfall/internal/config"
	"importwaterfall/internal/sample"
)

// acquire obtains the raw trace from a file, a saved capture or by
// sampling the interpreter.
func acquire(ctx context.Context, opts analyzeOptions, env analyzeEnv) (*sample.Result, error) {
	switch {
	case opts.input != "":
		return readRawTrace(opts.input, env.stdin)
	case opts.from != "":
		c, err := capture.Load(opts.from)
		if err != nil {
			return nil, err
		}
		if c.Module != opts.module {
			fmt.Fprintf(env.stderr, "warning: capture %s was taken for %q, filtering for %q\n", opts.from, c.Module, opts.module)
		}
		return c.Result(), nil
	default:
		return sampleTrace(ctx, opts, env)
	}
}

func readRawTrace(path string, stdin io.Reader) (*sample.Result, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read trace input: %w", err)
	}
	return &sample.Result{Stderr: data}, nil
}

func sampleTrace(ctx context.Context, opts analyzeOptions, env analyzeEnv) (*sample.Result, error) {
	var (
		res *sample.Result
		err error
	)
	if env.useTUI {
		res, err = runSamplingWithUI(ctx, env.sampler, opts.sample, env.stderr)
	} else {
		res, err = env.sampler.BestOf(ctx, opts.sample)
	}
	if err != nil {
		return nil, err
	}

	if opts.format == config.FormatHAR || opts.save != "" {
		if res.Version, err = env.sampler.Version(ctx, opts.sample); err != nil {
			return nil, fmt.Errorf("failed to query interpreter version: %w", err)
		}
	}
	if opts.save != "" {
		if err := capture.Save(opts.save, capture.FromResult(opts.sample, res)); err != nil {
			return nil, err
		}
	}
	return res, nil
}
