package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func (a *App) tokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Save the remote access token",
		Long: "Prompt for a GitHub personal access token and store it next to " +
			"the local database. The GITHUB_TOKEN environment variable, when " +
			"set, takes precedence over the saved token.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			fmt.Fprint(a.out, "Token: ")
			raw, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Fprintln(a.out)
			if err != nil {
				return fmt.Errorf("read token: %w", err)
			}

			token := strings.TrimSpace(string(raw))
			if token == "" {
				return fmt.Errorf("empty token")
			}

			if err := a.state.SaveGitHubToken(ctx, token); err != nil {
				return fmt.Errorf("save token: %w", err)
			}
			fmt.Fprintln(a.out, "Token saved.")
			return nil
		},
	}
}
