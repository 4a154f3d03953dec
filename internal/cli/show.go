package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/auditor/internal/tui"
)

var showCmd = &cobra.Command{
	Use:   "show <file>",
	Short: "Print a file with its review state and comments",
	Args:  cobra.ExactArgs(1),
	RunE:  withEnv(runShow),
}

func init() {
	showCmd.Flags().IntP("width", "w", 120, "output width")
}

func runShow(ctx context.Context, e *env, cmd *cobra.Command, args []string) error {
	name := e.svc.Normalize(args[0])
	source, err := e.readSource(name)
	if err != nil {
		return err
	}
	fs, commit, err := e.svc.ReviewState(ctx, name)
	if err != nil {
		return err
	}
	comments, err := e.svc.Comments(ctx, name)
	if err != nil {
		return err
	}

	if commit != "" {
		head, err := e.repo.CurrentCommit(ctx)
		if err == nil && head != commit {
			e.log.Warn("review state is from an older commit", "file", name, "commit", commit, "head", head)
		}
	}

	width, _ := cmd.Flags().GetInt("width")
	fmt.Fprint(out(cmd), tui.RenderFile(name, source, fs, comments, width))
	return nil
}
