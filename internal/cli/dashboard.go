package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/auditor/internal/review"
	"github.com/sprite-ai/auditor/internal/service"
	"github.com/sprite-ai/auditor/internal/tui"
)

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	Aliases: []string{"ui"},
	Short:   "Browse review progress in an interactive terminal UI",
	Args:    cobra.NoArgs,
	RunE:    withEnv(runDashboard),
}

func runDashboard(ctx context.Context, e *env, cmd *cobra.Command, args []string) error {
	load := func() ([]service.FileInfo, error) {
		return e.svc.Info(ctx)
	}
	read := func(name string) ([]string, review.FileState, error) {
		source, err := e.readSource(name)
		if err != nil {
			return nil, review.FileState{}, err
		}
		fs, _, err := e.svc.ReviewState(ctx, name)
		return source, fs, err
	}

	files, err := load()
	if err != nil {
		return err
	}
	return tui.Run(files, load, read)
}
