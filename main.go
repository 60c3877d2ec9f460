// Command restock-notifier monitors retail product pages and alerts Telegram
// subscribers when a product comes back in stock.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go"
	"github.com/alexflint/go-arg"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"google.golang.org/api/option"

	"restock-notifier/bot"
	"restock-notifier/classify"
	"restock-notifier/config"
	"restock-notifier/fetch"
	"restock-notifier/monitor"
	"restock-notifier/store"
	"restock-notifier/telegram"
)

var args struct {
	Config        string `arg:"-c,--config" default:"config.toml" help:"path to the TOML configuration file"`
	Token         string `arg:"-t,--token" help:"telegram bot token"`
	TokenEnvKey   string `arg:"--token-env-key" default:"TELEGRAM_BOT_TOKEN" help:"env variable holding the telegram bot token"`
	FirebaseCreds string `arg:"--firebase-creds" help:"path to a Firebase service account file (default: application default credentials)"`
}

func main() {
	arg.MustParse(&args)

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.GetConfig(args.Config)
	if err != nil {
		logger.Error("Failed to load configuration", "path", args.Config, "error", err)
		os.Exit(1)
	}

	token := args.Token
	if token == "" {
		token = os.Getenv(args.TokenEnvKey)
	}
	if token == "" {
		logger.Error("Telegram bot token not provided", "env_key", args.TokenEnvKey)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var opts []option.ClientOption
	if args.FirebaseCreds != "" {
		opts = append(opts, option.WithCredentialsFile(args.FirebaseCreds))
	}
	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		logger.Error("Failed to initialize Firebase app", "error", err)
		os.Exit(1)
	}
	fsClient, err := app.Firestore(ctx)
	if err != nil {
		logger.Error("Failed to initialize Firestore client", "error", err)
		os.Exit(1)
	}

	st := store.New(fsClient, logger)
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("Failed to close store", "error", err)
		}
	}()

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		logger.Error("Failed to connect to Telegram", "error", err)
		os.Exit(1)
	}
	logger.Info("Connected to Telegram", "bot", api.Self.UserName)

	fetcher := fetch.New(
		&http.Client{Timeout: cfg.FetchTimeout},
		cfg.FetchTimeout,
		cfg.RenderTimeout,
		logger,
	)
	registry := classify.NewRegistry(cfg.ScoredStores)
	notifier := telegram.New(api, logger)

	mon := monitor.New(fetcher, st, notifier, registry, logger,
		monitor.WithThreshold(cfg.RestockThreshold),
		monitor.WithPacing(cfg.PacingDelay),
	)

	commands := bot.New(api, st, mon, cfg.IsAdmin, logger)

	go startHealthServer(cfg.HealthAddress, logger)

	go func() {
		if err := commands.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("Command loop stopped", "error", err)
			stop()
		}
	}()

	logger.Info("Starting restock monitor",
		"poll_interval", cfg.PollInterval.String(),
		"pacing_delay", cfg.PacingDelay.String(),
		"restock_threshold", cfg.RestockThreshold)

	go func() {
		if err := mon.Run(ctx, cfg.PollInterval); err != nil && ctx.Err() == nil {
			logger.Error("Monitor stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	// Give in-flight deliveries a moment before the process exits.
	time.Sleep(time.Second)
}

func startHealthServer(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(map[string]string{"status": "healthy"}); err != nil {
			http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		}
	})

	logger.Info("Starting health endpoint", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("Health endpoint stopped", "error", err)
	}
}
