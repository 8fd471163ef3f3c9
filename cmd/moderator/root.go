package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/DevRickLin/chat-moderator/internal/conf"
	"github.com/DevRickLin/chat-moderator/internal/logger"
)

// Version is set at build time via -ldflags "-X main.Version=v1.0.0"
var Version = "dev"

type rootOptions struct {
	envFile string
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "moderator",
		Short:        "Group chat moderation agent",
		Long:         "Batches group chat messages, classifies them with a language model and applies moderation decisions, with admin review for kicks and bans.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env", "", "env file to load (default: .env if present)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newMCPCmd(opts))
	root.AddCommand(newResetCmd(opts))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "moderator %s\n", Version)
		},
	})
	return root
}

// load reads the env file and environment into a config and builds the root logger
func (o *rootOptions) load() (*conf.Config, zerolog.Logger, error) {
	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil {
			return nil, zerolog.Nop(), fmt.Errorf("load %s: %w", o.envFile, err)
		}
	} else if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, zerolog.Nop(), fmt.Errorf("load .env: %w", err)
		}
	}

	cfg := conf.LoadFromEnv()
	if o.verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, logger.New(cfg.Log.Level, cfg.Log.Pretty), nil
}
