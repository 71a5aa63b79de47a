package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Benioh/reflection-journal/internal/models"
)

// enrichBudget caps how long an add invocation waits for analysis before
// giving up on the remote and keeping the heuristic-free record.
const enrichBudget = 15 * time.Second

func (a *App) addCmd() *cobra.Command {
	var typ string

	cmd := &cobra.Command{
		Use:   "add [content]",
		Short: "Add a new entry",
		Long: "Add a new entry. Content is taken from the arguments, or from " +
			"stdin when no arguments are given. The entry is summarized, " +
			"tagged and categorized automatically.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			content := strings.TrimSpace(strings.Join(args, " "))
			if content == "" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				content = strings.TrimSpace(string(data))
			}
			if content == "" {
				return fmt.Errorf("entry content is empty")
			}

			rt := models.ReflectionType(typ)
			if !rt.Valid() {
				return fmt.Errorf("unknown entry type %q", typ)
			}

			rec := &models.Reflection{Content: content, Type: rt}
			id, err := a.repo.Add(ctx, rec)
			if err != nil {
				return fmt.Errorf("save entry: %w", err)
			}

			// The entry is saved; report that before analysis starts.
			fmt.Fprintf(a.out, "Added entry %d\n", id)

			// Analysis runs off the save path on its own worker. The
			// command still waits for it so the process does not exit with
			// the enrichment write in flight.
			done := make(chan struct{})
			go func() {
				defer close(done)
				a.enrichEntry(ctx, id, content)
			}()
			<-done
			return nil
		},
	}

	cmd.Flags().StringVarP(&typ, "type", "t", string(models.TypeDaily),
		"entry type (daily, weekly, monthly, yearly, project)")
	return cmd
}

func (a *App) enrichEntry(ctx context.Context, id int64, content string) {
	ctx, cancel := context.WithTimeout(ctx, enrichBudget)
	defer cancel()

	analysis := a.enrich.Analyze(ctx, content)
	if err := a.repo.UpdateEnrichment(ctx, id, analysis.Summary, analysis.Tags, analysis.Category); err != nil {
		a.logger.Warn(ctx, "enrichment not saved", "id", id, "error", err)
		return
	}
	fmt.Fprintf(a.out, "Categorized entry %d [%s] %s\n", id, analysis.Category, analysis.Summary)
}
