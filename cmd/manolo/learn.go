package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ashureev/manolo/internal/ingest"
)

func parseChatID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid chat id %q", raw)
	}
	return id, nil
}

func newLearnCmd() *cobra.Command {
	var botUser string
	cmd := &cobra.Command{
		Use:   "learn <chat-id> <file.txt>",
		Short: "Teach a chat the sentences of a plain-text file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			chatID, err := parseChatID(args[0])
			if err != nil {
				return err
			}
			if !ingest.IsTextDocument(args[1]) {
				return fmt.Errorf("%s is not a .txt file", args[1])
			}
			cfg := configFrom(cmd)
			if botUser == "" {
				botUser = cfg.Telegram.BotUsername
			}

			f, err := os.Open(args[1])
			if err != nil {
				return fmt.Errorf("open document: %w", err)
			}
			defer f.Close()

			repo, err := openRepo(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeRepo(repo)

			n, err := ingest.NewPipeline(repo, botUser).IngestReader(cmd.Context(), chatID, f)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "learned %d sentences into chat %d\n", n, chatID)
			return err
		},
	}
	cmd.Flags().StringVar(&botUser, "bot-user", "", "Bot username stripped from learned text (defaults to TELEGRAM_BOT_USER).")
	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <chat-id>",
		Short: "Print what a chat has taught the bot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chatID, err := parseChatID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			repo, err := openRepo(ctx, configFrom(cmd))
			if err != nil {
				return err
			}
			defer closeRepo(repo)

			count, err := repo.CountMessages(ctx, chatID)
			if err != nil {
				return err
			}
			freq, err := repo.Frequency(ctx, chatID)
			if err != nil {
				return err
			}
			stickers, err := repo.Stickers(ctx, chatID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "chat:      %d\nmessages:  %d\nfrequency: %d\nstickers:  %d\n", chatID, count, freq, len(stickers))
			for _, s := range stickers {
				_, _ = fmt.Fprintf(out, "  %s x%d\n", s.FileID, s.Count)
			}
			return nil
		},
	}
}
