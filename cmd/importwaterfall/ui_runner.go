package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"importwaterfall/internal/sample"
	"importwaterfall/internal/ui"
)

var errInterrupted = errors.New("sampling interrupted")

// runSamplingWithUI samples in one goroutine while the progress view runs
// in another. Whichever fails first cancels the other.
func runSamplingWithUI(ctx context.Context, sampler *sample.Sampler, cfg sample.Config, out io.Writer) (*sample.Result, error) {
	events := make(chan sample.Event, 64)
	g, gctx := errgroup.WithContext(ctx)

	var res *sample.Result
	g.Go(func() error {
		defer close(events)
		s := *sampler
		s.Progress = sample.ChannelSink{Ch: events, Done: gctx.Done()}
		var err error
		res, err = s.BestOf(gctx, cfg)
		return err
	})

	g.Go(func() error {
		title := fmt.Sprintf("sampling `import %s` with %s", cfg.Module, cfg.Argv()[0])
		model := ui.NewSamplingModel(title, cfg.Runs, events)
		program := tea.NewProgram(model, tea.WithOutput(out), tea.WithContext(gctx))
		final, err := program.Run()
		if err != nil {
			if gctx.Err() != nil {
				// sampling failed first; its error is the one to report
				return nil
			}
			return fmt.Errorf("progress ui: %w", err)
		}
		if ui.Interrupted(final) {
			return errInterrupted
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}
