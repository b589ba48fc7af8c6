package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ashureev/manolo/internal/config"
	"github.com/ashureev/manolo/internal/fieldcrypt"
	"github.com/ashureev/manolo/internal/store"
)

var version = "dev"

type cfgKey struct{}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "manolo",
		Short:        "Per-chat Markov chatter bot",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := godotenv.Load(); err != nil {
				slog.Debug("No .env file found, using environment variables")
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
				if err := cfg.LogLevel.UnmarshalText([]byte(strings.TrimSpace(lvl))); err != nil {
					return fmt.Errorf("invalid --log-level: %w", err)
				}
			}
			slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
				Level: cfg.LogLevel,
			})))
			cmd.SetContext(context.WithValue(cmd.Context(), cfgKey{}, cfg))
			return nil
		},
	}
	cmd.PersistentFlags().String("log-level", "", "Logging level: debug|info|warn|error (overrides LOG_LEVEL).")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newLearnCmd())
	cmd.AddCommand(newStatsCmd())
	return cmd
}

func configFrom(cmd *cobra.Command) *config.Config {
	cfg, _ := cmd.Context().Value(cfgKey{}).(*config.Config)
	return cfg
}

// openRepo opens the configured store, sealing message text when
// ENCRYPT_KEY is set.
func openRepo(ctx context.Context, cfg *config.Config) (store.Repository, error) {
	var cipher fieldcrypt.Cipher = fieldcrypt.Plain{}
	if cfg.DB.EncryptKey != "" {
		aead, err := fieldcrypt.New(cfg.DB.EncryptKey)
		if err != nil {
			return nil, fmt.Errorf("initialize field encryption: %w", err)
		}
		cipher = aead
	}

	repo, err := store.Open(cfg.DB.Driver, cfg.DB.Path, cfg.DB.DSN, store.WithCipher(cipher))
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	if err := repo.Ping(ctx); err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("database health check: %w", err)
	}
	slog.Info("Database connected", "driver", cfg.DB.Driver, "encrypted", cfg.DB.EncryptKey != "")
	return repo, nil
}

func closeRepo(repo store.Repository) {
	if err := repo.Close(); err != nil {
		slog.Error("Failed to close repository", "error", err)
	}
}
