package cli

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/spf13/cobra"
)

var commentCmd = &cobra.Command{
	Use:   "comment",
	Short: "Add, list, edit or delete line comments",
	Long:  "Manage comments attached to lines of tracked files. Line numbers are 1-based.",
}

var commentAddCmd = &cobra.Command{
	Use:   "add <file> <line> <body>",
	Short: "Comment on a line",
	Args:  cobra.ExactArgs(3),
	RunE:  withEnv(runCommentAdd),
}

var commentListCmd = &cobra.Command{
	Use:     "list <file>",
	Aliases: []string{"ls"},
	Short:   "List the comments of a file",
	Args:    cobra.ExactArgs(1),
	RunE:    withEnv(runCommentList),
}

var commentEditCmd = &cobra.Command{
	Use:   "edit <file> <line> <id> <body>",
	Short: "Replace the body of a comment",
	Args:  cobra.ExactArgs(4),
	RunE:  withEnv(runCommentEdit),
}

var commentDeleteCmd = &cobra.Command{
	Use:     "delete <file> <line> <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a comment",
	Args:    cobra.ExactArgs(3),
	RunE:    withEnv(runCommentDelete),
}

func init() {
	for _, c := range []*cobra.Command{commentAddCmd, commentEditCmd} {
		c.Flags().StringP("author", "a", "", "comment author (default: $USER)")
	}
	commentCmd.AddCommand(commentAddCmd, commentListCmd, commentEditCmd, commentDeleteCmd)
}

func author(cmd *cobra.Command) string {
	if a, _ := cmd.Flags().GetString("author"); a != "" {
		return a
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "anonymous"
}

func runCommentAdd(ctx context.Context, e *env, cmd *cobra.Command, args []string) error {
	line, err := parseLine(args[1])
	if err != nil {
		return err
	}
	c, err := e.svc.AddComment(ctx, args[0], line, args[2], author(cmd))
	if err != nil {
		return err
	}
	fmt.Fprintf(out(cmd), "Added comment %s on %s:%d\n", c.ID, e.svc.Normalize(args[0]), line+1)
	return nil
}

func runCommentList(ctx context.Context, e *env, cmd *cobra.Command, args []string) error {
	comments, err := e.svc.Comments(ctx, args[0])
	if err != nil {
		return err
	}
	w := out(cmd)
	if comments.Count() == 0 {
		fmt.Fprintln(w, "No comments.")
		return nil
	}
	for _, line := range slices.Sorted(maps.Keys(comments)) {
		for _, c := range comments[line] {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", line+1, c.ID, c.Author, c.Body)
		}
	}
	return nil
}

func runCommentEdit(ctx context.Context, e *env, cmd *cobra.Command, args []string) error {
	line, err := parseLine(args[1])
	if err != nil {
		return err
	}
	if err := e.svc.UpdateComment(ctx, args[0], line, args[2], args[3], author(cmd)); err != nil {
		return err
	}
	fmt.Fprintf(out(cmd), "Updated comment %s\n", args[2])
	return nil
}

func runCommentDelete(ctx context.Context, e *env, cmd *cobra.Command, args []string) error {
	line, err := parseLine(args[1])
	if err != nil {
		return err
	}
	if err := e.svc.DeleteComment(ctx, args[0], line, args[2]); err != nil {
		return err
	}
	fmt.Fprintf(out(cmd), "Deleted comment %s\n", args[2])
	return nil
}
