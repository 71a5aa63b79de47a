package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func (a *App) deleteCmd() *cobra.Command {
	var noBackup bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an entry, backing it up remotely first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}

			// Capture the record before it disappears locally.
			rec, err := a.repo.GetByID(ctx, id)
			if err != nil {
				return fmt.Errorf("load entry %d: %w", id, err)
			}

			queued := false
			if !noBackup {
				queued = a.queue.Enqueue(ctx, rec)
			}

			if err := a.repo.Delete(ctx, id); err != nil {
				return fmt.Errorf("delete entry %d: %w", id, err)
			}

			if queued {
				// One-shot invocation: run the worker just long enough to
				// drain the backup.
				a.queue.Start(ctx)
				a.queue.Stop()
				fmt.Fprintf(a.out, "Deleted entry %d (backed up remotely)\n", id)
			} else {
				fmt.Fprintf(a.out, "Deleted entry %d\n", id)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noBackup, "no-backup", false, "skip the remote deletion backup")
	return cmd
}
