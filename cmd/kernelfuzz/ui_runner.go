package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"kernelfuzz/internal/replay"
	"kernelfuzz/internal/ui"
)

type replayResult struct {
	outs []replay.Outcome
	err  error
}

// replayWithUI runs the replay in the background and follows it with the
// progress view. Quitting the view cancels the replay.
func replayWithUI(ctx context.Context, title string, r *replay.Runner, paths []string, cfg replay.Config) ([]replay.Outcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan replay.Outcome, 256)
	resultCh := make(chan replayResult, 1)

	go func() {
		cfg.Progress = func(out replay.Outcome) {
			select {
			case events <- out:
			case <-ctx.Done():
			}
		}
		outs, err := replay.Replay(ctx, r, paths, cfg)
		resultCh <- replayResult{outs: outs, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, paths, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	cancel()
	res := <-resultCh
	if uiErr != nil {
		return res.outs, uiErr
	}
	return res.outs, res.err
}
