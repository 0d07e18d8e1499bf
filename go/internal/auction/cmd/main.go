package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// rootOptions holds flags shared by every command.
type rootOptions struct {
	envFile    string
	configPath string
	env        EnvConfig
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "auctioneer",
		Short:         "Timed lot auction service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if it exists
			if err := godotenv.Load(opts.envFile); err != nil && !os.IsNotExist(err) {
				log.Warn().Err(err).Msg("could not load .env file")
			}
			opts.env = newEnvConfig()
			if opts.configPath != "" {
				opts.env.ConfigPath = opts.configPath
			}

			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
			zerolog.SetGlobalLevel(parseLevel(opts.env.LogLevel))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "environment file to load")
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "auction config file (overrides AUCTION_CONFIG)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newExportCommand(opts))
	cmd.AddCommand(newCheckCatalogCommand(opts))
	return cmd
}
