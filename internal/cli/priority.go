package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/auditor/internal/model"
)

var priorityCmd = &cobra.Command{
	Use:       "priority <file> <High|Medium|Low|Ignore>",
	Short:     "Set the review priority of a tracked file",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"High", "Medium", "Low", "Ignore"},
	RunE:      withEnv(runPriority),
}

func runPriority(ctx context.Context, e *env, cmd *cobra.Command, args []string) error {
	p, err := model.ParsePriority(args[1])
	if err != nil {
		return err
	}
	if err := e.svc.SetMetadata(ctx, args[0], model.Metadata{Priority: p}); err != nil {
		return err
	}
	fmt.Fprintf(out(cmd), "%s: priority %s\n", e.svc.Normalize(args[0]), p)
	return nil
}
