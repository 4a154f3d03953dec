package cli

import (
	"context"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sprite-ai/auditor/internal/api"
	"github.com/sprite-ai/auditor/internal/vcs"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP server exposing review state to editor integrations.

Endpoints:
  GET    /            Usage hint
  GET    /health      Health check
  GET    /reviews     Review state of ?file_name=
  POST   /reviews     Mark a line range reviewed, modified, ignored or cleared
  POST   /transform   Carry a file's review state forward to HEAD
  GET    /info        Progress of every tracked file
  GET    /comments    Comments of ?file_name= (optionally &line_number=)
  POST   /comments    Add a comment
  PUT    /comments    Edit a comment
  DELETE /comments    Delete a comment
  POST   /metadata    Set a file's review priority
  GET    /metrics     Prometheus metrics
  GET    /api/ws      WebSocket for live review state

Unless --no-watch is given, stale review state is transformed whenever HEAD
moves.`,
	RunE: withEnv(runServe),
}

func init() {
	serveCmd.Flags().IntP("port", "p", 0, "port to listen on (default: PORT or 3000)")
	serveCmd.Flags().Bool("no-watch", false, "do not follow HEAD")
}

func runServe(ctx context.Context, e *env, cmd *cobra.Command, args []string) error {
	noWatch, _ := cmd.Flags().GetBool("no-watch")

	g, ctx := errgroup.WithContext(ctx)

	srv := api.New(e.cfg.Addr(), e.svc, e.log)
	g.Go(func() error {
		return srv.ListenAndServe(ctx)
	})

	if !noWatch {
		// Catch up on commits made while the server was down.
		if _, err := e.svc.TransformAll(ctx); err != nil {
			e.log.Warn("initial transform failed", "error", err)
		}

		w, err := vcs.NewHeadWatcher(e.repo.GitDir(), e.cfg.WatchDebounce, e.log, func() {
			if _, err := e.svc.TransformAll(ctx); err != nil {
				e.log.Warn("transform after HEAD change failed", "error", err)
			}
		})
		if err != nil {
			return err
		}
		g.Go(func() error {
			return w.Start(ctx)
		})
	}

	return g.Wait()
}
