package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/DevRickLin/chat-moderator/internal/mcp"
)

func newMCPCmd(opts *rootOptions) *cobra.Command {
	var apiURL string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP admin server on stdio",
		Long:  "Serves moderation admin tools over MCP stdio. Tools talk to a running serve process through its admin API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			if apiURL == "" {
				apiURL = cfg.AdminAPI.URL
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log.Info().Str("api", apiURL).Msg("mcp server starting")
			return mcp.NewServer(mcp.NewClient(apiURL), Version, log).Run(ctx)
		},
	}
	cmd.Flags().StringVar(&apiURL, "api", "", "admin API base URL (default: $ADMIN_API_URL)")
	return cmd
}
