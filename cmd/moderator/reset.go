package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/DevRickLin/chat-moderator/internal/data"
	"github.com/DevRickLin/chat-moderator/internal/mcp"
)

func newResetCmd(opts *rootOptions) *cobra.Command {
	var (
		chatID int64
		viaAPI bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear buffered messages and history of a chat",
		Long: "Deletes the persisted buffer snapshot and history of a chat. " +
			"Use --via-api while serve is running so its in-memory buffer is cleared too.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if chatID == 0 {
				return errors.New("--chat is required")
			}
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			if viaAPI {
				if err := mcp.NewClient(cfg.AdminAPI.URL).ResetChat(ctx, chatID); err != nil {
					return fmt.Errorf("reset via api: %w", err)
				}
			} else {
				store, err := data.NewStateStore(cfg.Store)
				if err != nil {
					return fmt.Errorf("open state store: %w", err)
				}
				defer store.Close()
				if err := data.NewChatStateRepo(store).ClearChat(ctx, chatID); err != nil {
					return err
				}
			}

			log.Info().Int64("chat_id", chatID).Bool("via_api", viaAPI).Msg("chat reset")
			fmt.Fprintf(cmd.OutOrStdout(), "chat %d reset\n", chatID)
			return nil
		},
	}
	cmd.Flags().Int64Var(&chatID, "chat", 0, "chat ID to reset")
	cmd.Flags().BoolVar(&viaAPI, "via-api", false, "reset through the running service's admin API")
	return cmd
}
