package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/auditor/internal/service"
)

// ErrBelowThreshold is returned by status when review progress is below
// --fail-under.
var ErrBelowThreshold = errors.New("review progress below threshold")

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report review progress of every tracked file",
	Long: `Print the review progress of every tracked file that passes the
configured extension and exclusion filters.

With --fail-under, exit with an error when the share of reviewed or ignored
lines across all files is below the given percentage. Useful in CI.`,
	Args: cobra.NoArgs,
	RunE: withEnv(runStatus),
}

func init() {
	statusCmd.Flags().StringP("format", "f", "text", "output format: text, json, markdown")
	statusCmd.Flags().Float64("fail-under", 0, "fail when overall progress is below this percentage")
}

func runStatus(ctx context.Context, e *env, cmd *cobra.Command, args []string) error {
	info, err := e.svc.Info(ctx)
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	w := out(cmd)
	switch format {
	case "json":
		err = outputJSON(w, info)
	case "markdown":
		outputMarkdown(w, info)
	case "text":
		outputText(w, info)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	if err != nil {
		return err
	}

	threshold, _ := cmd.Flags().GetFloat64("fail-under")
	if overall := overallPercent(info); threshold > 0 && overall < threshold {
		return fmt.Errorf("%w: %.1f%% < %.1f%%", ErrBelowThreshold, overall, threshold)
	}
	return nil
}

// overallPercent weighs each file by its line count.
func overallPercent(info []service.FileInfo) float64 {
	var done, total int
	for _, f := range info {
		done += min(f.Summary.Reviewed+f.Summary.Ignored, f.Summary.Total)
		total += f.Summary.Total
	}
	if total == 0 {
		return 0
	}
	return float64(done) * 100 / float64(total)
}

func outputText(w io.Writer, info []service.FileInfo) {
	if len(info) == 0 {
		fmt.Fprintln(w, "No tracked files.")
		return
	}

	nameWidth := 4
	for _, f := range info {
		nameWidth = max(nameWidth, len(f.FileName))
	}

	fmt.Fprintf(w, "%-*s  %8s  %8s  %7s  %5s  %6s\n", nameWidth, "FILE", "REVIEWED", "MODIFIED", "IGNORED", "LINES", "DONE")
	stale := 0
	for _, f := range info {
		s := f.Summary
		marker := ""
		if f.Stale {
			marker = "  (stale)"
			stale++
		}
		fmt.Fprintf(w, "%-*s  %8d  %8d  %7d  %5d  %5.1f%%%s\n",
			nameWidth, f.FileName, s.Reviewed, s.Modified, s.Ignored, s.Total, s.Percent(), marker)
	}
	fmt.Fprintf(w, "\n%d file(s), %.1f%% reviewed overall", len(info), overallPercent(info))
	if stale > 0 {
		fmt.Fprintf(w, ", %d stale (run `auditor transform`)", stale)
	}
	fmt.Fprintln(w)
}

func outputJSON(w io.Writer, info []service.FileInfo) error {
	type jsonOutput struct {
		Overall float64            `json:"overall_percent"`
		Files   []service.FileInfo `json:"files"`
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonOutput{Overall: overallPercent(info), Files: info})
}

func outputMarkdown(w io.Writer, info []service.FileInfo) {
	fmt.Fprintf(w, "## Review Progress\n\n")
	fmt.Fprintf(w, "**%d file(s)**, **%.1f%%** reviewed overall\n\n", len(info), overallPercent(info))
	if len(info) == 0 {
		return
	}

	fmt.Fprintln(w, "| File | Reviewed | Modified | Ignored | Lines | Done |")
	fmt.Fprintln(w, "|------|----------|----------|---------|-------|------|")
	for _, f := range info {
		s := f.Summary
		name := "`" + f.FileName + "`"
		if f.Stale {
			name += " (stale)"
		}
		fmt.Fprintf(w, "| %s | %d | %d | %d | %d | %.1f%% |\n",
			strings.ReplaceAll(name, "|", `\|`), s.Reviewed, s.Modified, s.Ignored, s.Total, s.Percent())
	}
}
