package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ashureev/manolo/internal/api"
	"github.com/ashureev/manolo/internal/bot"
	"github.com/ashureev/manolo/internal/config"
	"github.com/ashureev/manolo/internal/confirm"
	"github.com/ashureev/manolo/internal/dispatch"
	"github.com/ashureev/manolo/internal/feed"
	"github.com/ashureev/manolo/internal/health"
	"github.com/ashureev/manolo/internal/messages"
	"github.com/ashureev/manolo/internal/middleware"
	"github.com/ashureev/manolo/internal/store"
	"github.com/ashureev/manolo/internal/telegram"
	"github.com/ashureev/manolo/internal/tts"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot together with the admin HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := configFrom(cmd)
			if v, _ := cmd.Flags().GetString("port"); v != "" {
				cfg.Port = v
			}
			if v, _ := cmd.Flags().GetString("grpc-health-addr"); v != "" {
				cfg.GRPCHealthAddr = v
			}
			if v, _ := cmd.Flags().GetString("tts-backend"); v != "" {
				cfg.TTS.Backend = v
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.ValidateServe(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().String("port", "", "Admin HTTP port (overrides PORT).")
	cmd.Flags().String("grpc-health-addr", "", "gRPC health listen address (overrides GRPC_HEALTH_ADDR).")
	cmd.Flags().String("tts-backend", "", "Speech backend: google|docker|none (overrides TTS_BACKEND).")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	slog.Info("Starting bot", "version", version, "bot_user", cfg.Telegram.BotUsername, "port", cfg.Port)

	repo, err := openRepo(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo(repo)

	msgs, err := messages.Spanish()
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}

	synth, err := tts.New(tts.Options{Backend: cfg.TTS.Backend, DockerImage: cfg.TTS.DockerImage})
	if err != nil {
		return fmt.Errorf("initialize tts: %w", err)
	}
	checks := map[string]api.Check{}
	if d, ok := synth.(*tts.Docker); ok {
		if err := d.Check(ctx); err != nil {
			slog.Warn("TTS image not ready, /audio will fail until it is built", "error", err)
		}
		checks["tts"] = d.Check
	}
	slog.Info("TTS backend ready", "backend", cfg.TTS.Backend, "language", cfg.TTS.Language)

	client := telegram.New(cfg.Telegram.Token,
		telegram.WithBaseURL(cfg.Telegram.APIURL),
		telegram.WithPollTimeout(cfg.Telegram.PollTimeout),
		telegram.WithSendRate(cfg.Telegram.SendRatePerMinute),
	)
	hub := feed.NewHub(cfg.FeedBacklog)
	confirms := confirm.NewManager(cfg.ConfirmTTL)

	svc, err := bot.NewService(bot.Deps{
		Repo:        repo,
		Sender:      feed.Mirror(client, hub),
		Confirms:    confirms,
		Messages:    msgs,
		Synthesizer: synth,
		BotUsername: cfg.Telegram.BotUsername,
		Version:     version,
		Language:    cfg.TTS.Language,
		AudioDir:    cfg.TTS.AudioDir,
	})
	if err != nil {
		return err
	}

	regCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := svc.RegisterCommands(regCtx); err != nil {
		slog.Warn("Failed to register bot commands", "error", err)
	}
	cancel()

	disp := dispatch.New(svc.Handle, cfg.Dispatch.Workers, cfg.Dispatch.QueueSize)
	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     newRouter(cfg, repo, hub, checks),
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: feed websockets are long lived.
		IdleTimeout: 120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return disp.Run(gctx) })
	g.Go(func() error {
		slog.Info("Polling for updates")
		return client.Poll(gctx, disp.Handler())
	})
	g.Go(func() error {
		confirms.RunSweeper(gctx, time.Minute)
		return nil
	})
	g.Go(func() error {
		hub.RunPruner(gctx, 10*time.Minute)
		return nil
	})
	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("admin server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})
	if cfg.GRPCHealthAddr != "" {
		g.Go(func() error {
			return health.NewGRPCServer(repo, 0).ListenAndServe(gctx, cfg.GRPCHealthAddr)
		})
	}

	if err := g.Wait(); err != nil {
		slog.Error("Bot stopped with error", "error", err)
		return err
	}
	slog.Info("Bot stopped successfully")
	return nil
}

func newRouter(cfg *config.Config, repo store.Repository, hub *feed.Hub, checks map[string]api.Check) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))

	// Public routes.
	api.NewHealthHandler(repo, 5*time.Second, checks).RegisterHealth(r)

	// Admin routes.
	r.Group(func(r chi.Router) {
		r.Use(middleware.CORS(cfg.CORSOrigins))
		r.Use(middleware.BearerToken(cfg.AdminToken))
		origin := "*"
		if len(cfg.CORSOrigins) > 0 {
			origin = cfg.CORSOrigins[0]
		}
		api.NewHandler(repo, hub, feed.NewHandler(hub, origin)).RegisterRoutes(r)
	})
	return r
}
