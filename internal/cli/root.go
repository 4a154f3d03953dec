// Package cli implements the auditor command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/auditor/internal/config"
	"github.com/sprite-ai/auditor/internal/service"
	"github.com/sprite-ai/auditor/internal/store"
	"github.com/sprite-ai/auditor/internal/vcs"
)

var rootCmd = &cobra.Command{
	Use:   "auditor",
	Short: "Track which lines of a repository have been reviewed",
	Long: `auditor records, per file, which line ranges have been reviewed, which
changed since they were last looked at, and which are ignored. Review state
follows the code across commits: lines touched by a commit become modified.

Settings come from an optional YAML file (--config), then the environment
(REPO_PATH, DB_PATH, PORT, STORE, ALLOWED_EXTENSIONS, EXCLUDED_PREFIXES,
LOG_LEVEL), then flags.`,
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringP("config", "c", "", "path to a YAML config file")
	pf.StringP("repo", "r", "", "repository path (default: REPO_PATH or the enclosing repository)")
	pf.String("db", "", "database file or directory (default: DB_PATH or .git/auditor.db)")
	pf.String("store", "", "store kind: sqlite, file or memory")
	pf.String("log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(
		serveCmd,
		statusCmd,
		markCmd,
		transformCmd,
		showCmd,
		commentCmd,
		priorityCmd,
		dashboardCmd,
		versionCmd,
	)
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig merges the config file, environment and flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("repo") {
		cfg.RepoPath, _ = flags.GetString("repo")
	}
	if flags.Changed("db") {
		cfg.DBPath, _ = flags.GetString("db")
	}
	if flags.Changed("store") {
		kind, _ := flags.GetString("store")
		cfg.Store = store.Kind(strings.ToLower(kind))
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Lookup("port") != nil && flags.Changed("port") {
		cfg.Port, _ = flags.GetInt("port")
	}

	if cfg.RepoPath == "" {
		cfg.RepoPath = "."
	}
	if cfg.DBPath == "" {
		cfg.DBPath = defaultDBPath(cfg)
	}
	return cfg.Build()
}

// defaultDBPath keeps the database inside the repository's git directory.
func defaultDBPath(cfg config.Config) string {
	repo, err := vcs.Open(cfg.RepoPath)
	if err != nil {
		return ""
	}
	name := "auditor.db"
	if cfg.Store == store.KindFile {
		name = "auditor"
	}
	return filepath.Join(repo.GitDir(), name)
}

// env is everything a command needs to run review operations.
type env struct {
	cfg   config.Config
	log   *slog.Logger
	repo  *vcs.Repository
	store store.Store
	svc   *service.Service
}

func openEnv(cmd *cobra.Command) (*env, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := cfg.NewLogger(cmd.ErrOrStderr())

	repo, err := vcs.Open(cfg.RepoPath)
	if err != nil {
		return nil, err
	}
	cfg.RepoPath = repo.Root()

	st, err := store.Open(cfg.Store, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Store, err)
	}
	logger.Debug("store opened", "kind", cfg.Store, "path", cfg.DBPath)

	svc := service.New(st, repo, service.Options{
		RepoPath:   repo.Root(),
		Exclusions: cfg.ExcludedPrefixes,
		Filter:     cfg.Filter(),
		Logger:     logger,
	})
	return &env{cfg: cfg, log: logger, repo: repo, store: st, svc: svc}, nil
}

func (e *env) Close() error {
	return e.store.Close()
}

// readSource returns the lines of a repository file as of the working tree.
func (e *env) readSource(name string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(e.cfg.RepoPath, filepath.FromSlash(e.svc.Normalize(name))))
	if err != nil {
		return nil, err
	}
	return splitLines(string(data)), nil
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// withEnv wraps a command body that needs an env, closing it afterwards.
func withEnv(fn func(ctx context.Context, e *env, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, e.Close())
		}()
		return fn(cmd.Context(), e, cmd, args)
	}
}

func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}
