package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/auditor/internal/rangeset"
	"github.com/sprite-ai/auditor/internal/review"
)

var markCmd = &cobra.Command{
	Use:   "mark <file> <start> <end> <state>",
	Short: "Mark a range of lines as reviewed, modified, ignored or cleared",
	Long: `Move lines start through end (1-based, inclusive) of a file into a review
state: reviewed, modified, ignored, or cleared to forget them.

The file's line count is read from the working tree unless --total is given.`,
	Example: `  auditor mark internal/server.go 10 42 reviewed
  auditor mark vendor.go 1 300 ignored --total 300`,
	Args: cobra.ExactArgs(4),
	RunE: withEnv(runMark),
}

func init() {
	markCmd.Flags().Int("total", 0, "total lines in the file (default: working tree line count)")
}

func runMark(ctx context.Context, e *env, cmd *cobra.Command, args []string) error {
	name := args[0]
	start, err := parseLine(args[1])
	if err != nil {
		return err
	}
	end, err := parseLine(args[2])
	if err != nil {
		return err
	}
	st, err := review.ParseState(args[3])
	if err != nil {
		return err
	}
	r, err := rangeset.NewRange(start, end)
	if err != nil {
		return err
	}

	total, _ := cmd.Flags().GetInt("total")
	if !cmd.Flags().Changed("total") {
		lines, err := e.readSource(name)
		if err != nil {
			return fmt.Errorf("counting lines of %s (use --total): %w", name, err)
		}
		total = len(lines)
	}

	fs, err := e.svc.UpdateReviewState(ctx, review.Update{
		File:       name,
		Range:      r,
		State:      st,
		TotalLines: total,
	})
	if err != nil {
		return err
	}

	s := review.Progress(fs)
	fmt.Fprintf(out(cmd), "%s: lines %d-%d %s (%.1f%% reviewed)\n",
		e.svc.Normalize(name), start+1, end+1, st, s.Percent())
	return nil
}

// parseLine converts a 1-based line argument into a 0-based index.
func parseLine(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid line %q: want a positive number", arg)
	}
	return n - 1, nil
}
