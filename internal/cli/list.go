package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Benioh/reflection-journal/internal/models"
	"github.com/Benioh/reflection-journal/internal/store"
)

func (a *App) listCmd() *cobra.Command {
	var (
		limit    int
		offset   int
		category string
		typ      string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := a.repo.List(cmd.Context(), store.ListFilter{
				Limit:    limit,
				Offset:   offset,
				Category: category,
				Type:     models.ReflectionType(typ),
			})
			if err != nil {
				return fmt.Errorf("list entries: %w", err)
			}

			if len(records) == 0 {
				fmt.Fprintln(a.out, "No entries.")
				return nil
			}
			for i := range records {
				a.printRecord(&records[i])
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum entries to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "entries to skip")
	cmd.Flags().StringVar(&category, "category", "", "filter by category")
	cmd.Flags().StringVarP(&typ, "type", "t", "", "filter by entry type")
	return cmd
}

func (a *App) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one entry in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}

			rec, err := a.repo.GetByID(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("load entry %d: %w", id, err)
			}

			a.printRecord(rec)
			fmt.Fprintln(a.out)
			fmt.Fprintln(a.out, rec.Content)
			return nil
		},
	}
}

func (a *App) searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search entries by keyword",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			records, err := a.repo.Search(cmd.Context(), query)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			if len(records) == 0 {
				fmt.Fprintf(a.out, "No entries match %q.\n", query)
				return nil
			}
			for i := range records {
				a.printRecord(&records[i])
			}
			return nil
		},
	}
}

func (a *App) printRecord(r *models.Reflection) {
	line := r.Summary
	if line == "" {
		line = firstLine(r.Content, 60)
	}
	fmt.Fprintf(a.out, "%4d  %s  [%s/%s]  %s", r.ID,
		r.UpdatedAt.Local().Format("2006-01-02 15:04"), r.Type, orDash(r.Category), line)
	if len(r.Tags) > 0 {
		fmt.Fprintf(a.out, "  #%s", strings.Join(r.Tags, " #"))
	}
	fmt.Fprintln(a.out)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func firstLine(s string, max int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	runes := []rune(s)
	if len(runes) > max {
		return string(runes[:max]) + "..."
	}
	return s
}
