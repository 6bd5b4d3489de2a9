package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"BuyBuddy/internal/api"
	"BuyBuddy/internal/cache"
	"BuyBuddy/internal/chatbot"
	"BuyBuddy/internal/config"
	"BuyBuddy/internal/telemetry"
	"BuyBuddy/internal/transcript"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	version = "dev"

	v   = config.New()
	env string
)

var rootCmd = &cobra.Command{
	Use:   "buybuddy",
	Short: "Chat with the BuyBuddy shopping assistant",
	Long: `BuyBuddy compares product offers across shops through a conversation.

Run without a subcommand to start chatting. Stored conversations can be
listed and reloaded, and any conversation can be exported.

Quick Start:
  buybuddy                          # Start chatting
  buybuddy conversations            # List recent conversations
  buybuddy show <session-id>        # Print a stored conversation
  buybuddy show <id> --format yaml  # Export it`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.LoadDotEnv(env)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return chatCmd.RunE(cmd, args)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&env, "env-file", ".env", "Environment file to load")
	flags.String("api-url", "", "Backend base URL")
	flags.Duration("timeout", 0, "Backend request timeout")
	flags.Bool("debug", false, "Enable debug logging on stderr")
	flags.String("log-dir", "", "Directory for logs, traces and metrics")
	flags.String("transcript", "", "Local transcript database (empty string keeps the default)")
	flags.Bool("no-transcript", false, "Do not keep local transcripts")

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// app holds the collaborators shared by the subcommands
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	client   *api.Client
	store    *transcript.Store
	tracer   trace.Tracer
	meter    metric.Meter
	closeFns []func()
}

// newApp loads configuration and wires logging, telemetry, the backend
// client and the transcript journal.
func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	if err := bindFlags(cmd, v); err != nil {
		return nil, err
	}
	if noTranscript, _ := cmd.Flags().GetBool("no-transcript"); noTranscript {
		v.Set("transcript_path", "")
	}

	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}

	logger, closeLog, err := telemetry.InitLogger(cfg.LogDir, cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger
	a.closeFns = append(a.closeFns, closeLog)

	a.tracer = otel.Tracer("buybuddy")
	a.meter = otel.Meter("buybuddy")
	if cfg.Telemetry {
		tracer, meter, shutdown, err := telemetry.InitTelemetry(ctx, cfg.LogDir)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		a.tracer, a.meter = tracer, meter
		a.closeFns = append(a.closeFns, shutdown)
	}

	a.client, err = api.NewClient(cfg.APIURL, logger,
		api.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
		api.WithCache(cache.NewStore(cfg.CacheTTL)),
		api.WithTracer(a.tracer),
		api.WithMeter(a.meter),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}

	if cfg.TranscriptPath != "" {
		a.store, err = transcript.Open(cfg.TranscriptPath, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to open transcript journal: %w", err)
		}
		a.closeFns = append(a.closeFns, func() {
			if err := a.store.Close(); err != nil {
				logger.Error("failed to close transcript journal", "error", err)
			}
		})
	}

	if cfg.Debug {
		logger.Info("Debug mode enabled", "api_url", cfg.APIURL)
	}

	return a, nil
}

// controller builds a session controller over the backend client
func (a *app) controller() (*chatbot.Controller, error) {
	return chatbot.NewController(a.client, a.logger,
		chatbot.WithHistoryLimit(a.cfg.HistoryLimit),
		chatbot.WithTracer(a.tracer),
		chatbot.WithMeter(a.meter),
	)
}

// Close releases everything newApp opened, newest first
func (a *app) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}

// bindFlags binds the persistent flags that were set explicitly, so that
// environment variables still win over flag defaults.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	keys := map[string]string{
		"api-url":    "api_url",
		"timeout":    "request_timeout",
		"debug":      "debug",
		"log-dir":    "log_dir",
		"transcript": "transcript_path",
	}
	for name, key := range keys {
		flag := cmd.Flag(name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}
