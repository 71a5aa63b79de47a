// Package cli wires the application together and exposes it as a cobra
// command tree.
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Benioh/reflection-journal/internal/backup"
	"github.com/Benioh/reflection-journal/internal/config"
	"github.com/Benioh/reflection-journal/internal/enrich"
	"github.com/Benioh/reflection-journal/internal/filex"
	"github.com/Benioh/reflection-journal/internal/logging"
	"github.com/Benioh/reflection-journal/internal/remote"
	"github.com/Benioh/reflection-journal/internal/state"
	"github.com/Benioh/reflection-journal/internal/store"
	"github.com/Benioh/reflection-journal/internal/syncer"
)

// App owns every long-lived component of the CLI.
type App struct {
	cfg    *config.Config
	logger logging.Logger
	out    io.Writer

	db     *sql.DB
	repo   *store.SQLiteRepository
	state  *state.Store
	remote remote.Store
	engine *syncer.Engine
	queue  *backup.Queue
	enrich *enrich.Client

	root *cobra.Command
}

func NewApp(cfg *config.Config) (*App, error) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	logger := logging.NewSlogLogger(slog.New(handler))

	ctx := context.Background()

	if _, err := filex.EnsureDir(cfg.DataDir); err != nil {
		return nil, fmt.Errorf("prepare data dir: %w", err)
	}

	db, err := store.Open(ctx, cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	app := &App{
		cfg:    cfg,
		logger: logger,
		out:    os.Stdout,
		db:     db,
		repo:   store.NewSQLiteRepository(db),
		state:  state.New(db),
		enrich: enrich.NewClient(cfg.EnrichAPIKey, cfg.EnrichBaseURL, logger),
	}

	if app.remote, err = app.buildRemote(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	app.engine = syncer.New(app.repo, app.remote, app.state, syncer.Config{
		Interval:      cfg.SyncInterval,
		SkewWindow:    cfg.SyncSkewWindow,
		SyncDeletions: cfg.SyncDeletions,
	}, logger)
	app.queue = backup.NewQueue(app.remote, logger)

	app.root = app.buildCommands()
	return app, nil
}

// buildRemote selects the snapshot backend. A missing token or bucket still
// yields a working store that reports itself unconfigured.
func (a *App) buildRemote(ctx context.Context) (remote.Store, error) {
	clientID, err := a.state.InstallationID(ctx)
	if err != nil {
		return nil, fmt.Errorf("installation id: %w", err)
	}

	switch a.cfg.RemoteBackend {
	case config.BackendS3:
		return remote.NewS3Store(ctx, remote.S3Config{
			Bucket:       a.cfg.S3Bucket,
			Region:       a.cfg.S3Region,
			AccessKey:    a.cfg.S3AccessKey,
			SecretKey:    a.cfg.S3SecretKey,
			BaseEndpoint: a.cfg.S3BaseEndpoint,
		})
	case config.BackendGitHub:
		token := a.cfg.GitHubToken
		if token == "" {
			// Fall back to the token saved by "reflect token".
			if token, err = a.state.GitHubToken(ctx); err != nil {
				return nil, fmt.Errorf("load saved token: %w", err)
			}
		}
		return remote.NewGitHubStore(token, a.cfg.GitHubRepo, a.cfg.GitHubBranch, clientID), nil
	default:
		return nil, fmt.Errorf("unknown remote backend %q", a.cfg.RemoteBackend)
	}
}

func (a *App) buildCommands() *cobra.Command {
	root := &cobra.Command{
		Use:           "reflect",
		Short:         "A personal reflection journal with remote backup",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	// The config file path is consumed before cobra runs; the flag is
	// declared here only so cobra accepts it.
	root.PersistentFlags().StringP("config", "c", "", "path to JSON config file")

	root.AddCommand(
		a.addCmd(),
		a.listCmd(),
		a.showCmd(),
		a.searchCmd(),
		a.deleteCmd(),
		a.syncCmd(),
		a.statusCmd(),
		a.deletedCmd(),
		a.tokenCmd(),
		a.watchCmd(),
	)
	return root
}

// Run executes the command tree and closes the database afterwards.
func (a *App) Run(ctx context.Context) error {
	defer a.db.Close()

	if err := a.root.ExecuteContext(ctx); err != nil {
		a.logger.Error(ctx, "command failed", "error", err)
		return err
	}
	return nil
}
