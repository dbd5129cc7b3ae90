// Command butler is the Discord butler bot: an AI agent with tool-calling
// access to memos, stickers, a shared pomodoro timer, Wikipedia lookups and
// scheduled event reminders.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/butler/internal/agent"
	"github.com/MrWong99/butler/internal/config"
	"github.com/MrWong99/butler/internal/conversation"
	"github.com/MrWong99/butler/internal/discord"
	"github.com/MrWong99/butler/internal/feature/memo"
	"github.com/MrWong99/butler/internal/feature/pomodoro"
	"github.com/MrWong99/butler/internal/feature/reminder"
	"github.com/MrWong99/butler/internal/feature/sticker"
	"github.com/MrWong99/butler/internal/feature/wiki"
	"github.com/MrWong99/butler/internal/health"
	"github.com/MrWong99/butler/internal/observe"
	"github.com/MrWong99/butler/internal/storage"
	"github.com/MrWong99/butler/internal/tool"
	"github.com/MrWong99/butler/pkg/provider/chat"
	"github.com/MrWong99/butler/pkg/provider/chat/factory"
)

// version is stamped by the build; "dev" for local builds.
var version = "dev"

// logLevel is shared with the config watcher so log verbosity can be
// hot-reloaded.
var logLevel = new(slog.LevelVar)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// .env is optional; real deployments inject the environment directly.
	_ = godotenv.Load()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "butler: config file %q not found; copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "butler: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logLevel.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("butler starting",
		"config", *configPath,
		"provider", cfg.AI.Provider,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ─────────────────────────────────────────────────────────
	shutdownOtel, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "butler",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOtel(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Storage ───────────────────────────────────────────────────────────────
	db, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		slog.Error("failed to open database", "path", cfg.Storage.Path, "err", err)
		return 1
	}
	defer db.Close()

	// ── AI provider and agent ─────────────────────────────────────────────────
	provider, err := factory.New(cfg.AI.Config)
	if err != nil {
		slog.Error("failed to build AI provider", "err", err)
		return 1
	}
	chat.OnRetry = func(ctx context.Context, vendor string) {
		observe.DefaultMetrics().RecordProviderRetry(ctx, vendor)
	}
	registry := tool.NewRegistry()
	aiAgent := agent.New(provider, registry,
		agent.WithPromptAppend(cfg.AI.PromptAppend),
		agent.WithProviderName(cfg.AI.Provider),
	)
	sessions := conversation.NewStore()

	// ── Features without Discord dependencies ─────────────────────────────────
	memoSvc := memo.New(storage.NewMemoStore(db))
	stickerSvc := sticker.New(storage.NewStickerStore(db), cfg.Features.Sticker.DetectRate)
	wikiClient := wiki.New()

	// ── Discord bot ───────────────────────────────────────────────────────────
	router := discord.NewRouter(registry, discord.WithSlashAlias("add-event", "event-reminder"))
	interactive := discord.NewInteractive(sessions, aiAgent, discord.WithDetector(stickerSvc))
	bot, err := discord.New(ctx, discord.Config{
		Token:           cfg.Discord.Token,
		GuildID:         cfg.Discord.GuildID,
		NotifyChannelID: cfg.Discord.NotifyChannelID,
	}, router, interactive)
	if err != nil {
		slog.Error("failed to connect to Discord", "err", err)
		return 1
	}
	defer func() {
		if err := bot.Close(); err != nil {
			slog.Warn("discord bot close error", "err", err)
		}
	}()

	// ── Features backed by the bot ────────────────────────────────────────────
	pomodoroSvc := pomodoro.New(storage.NewPomodoroStore(db), bot,
		pomodoro.WithPresence(bot),
		pomodoro.WithVoiceChannel(cfg.Features.Pomodoro.VoiceChannelID),
	)
	reminderSvc := reminder.New(bot, bot)

	// Registration order defines the /butler subcommand group order.
	memoSvc.Register(registry)
	pomodoroSvc.Register(registry)
	wikiClient.Register(registry)
	stickerSvc.Register(registry)
	reminderSvc.Register(registry)

	// A pomodoro that was running when the previous process died resumes.
	if err := pomodoroSvc.Resume(ctx); err != nil {
		slog.Error("failed to resume pomodoro", "err", err)
	}

	// ── Metrics and health endpoints ──────────────────────────────────────────
	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observe.Middleware(observe.DefaultMetrics())(promhttp.Handler()))
		health.New(
			health.Checker{Name: "database", Check: db.Ping},
			health.Checker{Name: "discord", Check: func(context.Context) error {
				if bot.Session().State == nil || bot.Session().State.User == nil {
					return errors.New("gateway session not ready")
				}
				return nil
			}},
		).Register(mux)

		srv := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server error", "err", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		slog.Info("metrics endpoint listening", "addr", cfg.Server.MetricsAddr)
	}

	// ── Config hot-reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if !d.Changed() {
			return
		}
		if d.LogLevelChanged {
			logLevel.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level reloaded", "level", d.NewLogLevel)
		}
		if d.StickerRateChanged {
			stickerSvc.SetDetectRate(d.NewStickerRate)
			slog.Info("sticker detect rate reloaded", "rate", d.NewStickerRate)
		}
		if d.PromptAppendChanged {
			aiAgent.SetPromptAppend(d.NewPromptAppend)
			slog.Info("prompt append reloaded")
		}
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	// ── Run ───────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return bot.Run(gctx) })
	g.Go(func() error { return reminderSvc.Run(gctx) })

	slog.Info("butler ready, press Ctrl+C to shut down")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		bot.NotifyError(context.Background(), "runtime error")
		return 1
	}

	slog.Info("goodbye")
	return 0
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
