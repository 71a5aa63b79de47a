package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func (a *App) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run the background sync loop until interrupted",
		Long: "Run an initial full sync, then keep uploading local changes on " +
			"the configured interval. Deletion backups queued by other " +
			"commands are also drained here. Stops cleanly on SIGINT/SIGTERM.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			if !a.remote.IsConfigured(ctx) {
				return fmt.Errorf("remote is not configured; set a token and repository first")
			}

			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
			defer signal.Stop(sigs)

			a.queue.Start(ctx)
			a.engine.Start(ctx)
			fmt.Fprintf(a.out, "Watching; syncing every %s. Ctrl-C to stop.\n", a.cfg.SyncInterval)

			select {
			case <-sigs:
			case <-ctx.Done():
			}

			a.engine.Stop()
			a.queue.Stop()
			fmt.Fprintln(a.out, "Stopped.")
			return nil
		},
	}
}
