package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/auditor/internal/review"
)

var transformCmd = &cobra.Command{
	Use:   "transform [file]",
	Short: "Carry review state forward to the current commit",
	Long: `Apply the changes between the commit a file was last reviewed at and HEAD:
every added or changed line becomes modified.

Without a file, or with --all, every stale snapshot is transformed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: withEnv(runTransform),
}

func init() {
	transformCmd.Flags().Bool("all", false, "transform every stale snapshot")
}

func runTransform(ctx context.Context, e *env, cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")
	if len(args) == 1 && all {
		return errors.New("--all cannot be combined with a file")
	}

	w := out(cmd)
	if len(args) == 0 {
		n, err := e.svc.TransformAll(ctx)
		if err != nil {
			return err
		}
		if n == 0 {
			fmt.Fprintln(w, "All files are up to date.")
			return nil
		}
		fmt.Fprintf(w, "Transformed %d snapshot(s) to the current commit.\n", n)
		return nil
	}

	fs, changed, err := e.svc.TransformReviewState(ctx, args[0])
	if err != nil {
		return err
	}
	name := e.svc.Normalize(args[0])
	if !changed {
		fmt.Fprintf(w, "%s is up to date.\n", name)
		return nil
	}
	s := review.Progress(fs)
	fmt.Fprintf(w, "%s: %d modified, %.1f%% reviewed\n", name, s.Modified, s.Percent())
	return nil
}
