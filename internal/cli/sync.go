package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Benioh/reflection-journal/internal/syncer"
)

func (a *App) syncCmd() *cobra.Command {
	var direction string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize the local store with the remote backup",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			dir, err := syncer.ParseDirection(direction)
			if err != nil {
				return err
			}

			if !a.engine.Sync(ctx, dir) {
				return fmt.Errorf("sync failed or was skipped; see log for details")
			}
			fmt.Fprintln(a.out, "Sync complete.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&direction, "direction", "d", string(syncer.DirectionBoth),
		"sync direction (upload, download, both)")
	return cmd
}

func (a *App) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show local and sync status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			count, err := a.repo.Count(ctx)
			if err != nil {
				return fmt.Errorf("count entries: %w", err)
			}

			st := a.engine.Status(ctx)

			fmt.Fprintf(a.out, "Entries:     %d\n", count)
			fmt.Fprintf(a.out, "Remote:      %s (%s)\n", a.cfg.RemoteBackend, configuredLabel(st.Configured))
			fmt.Fprintf(a.out, "Last sync:   %s\n", lastSyncLabel(st))
			return nil
		},
	}
}

func configuredLabel(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func lastSyncLabel(st syncer.Status) string {
	switch {
	case st.Syncing:
		return "syncing now"
	case !st.HasSynced:
		return "never"
	default:
		return fmt.Sprintf("%s (%s ago)",
			st.LastSyncTime.Local().Format("2006-01-02 15:04:05"),
			time.Since(st.LastSyncTime).Round(time.Second))
	}
}

func (a *App) deletedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deleted",
		Short: "List deletion backups stored remotely",
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := a.remote.ListDeletionBackups(cmd.Context())
			if err != nil {
				return fmt.Errorf("list deletion backups: %w", err)
			}

			if len(keys) == 0 {
				fmt.Fprintln(a.out, "No deletion backups.")
				return nil
			}
			for _, k := range keys {
				fmt.Fprintln(a.out, k)
			}
			return nil
		},
	}
}
