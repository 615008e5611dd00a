package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/plaenen/graphstore/pkg/security/credentials"
	"github.com/plaenen/graphstore/pkg/transport"
)

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "graphd",
		Short:         "Event-sourced graph store daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "config file (default graphd.yaml)")
	cmd.PersistentFlags().String("nats-url", "", "NATS server URL")
	cmd.PersistentFlags().String("db", "graphstore.db", "SQLite database path")
	cmd.PersistentFlags().String("log-file", "", "log file path (stderr when empty)")
	cmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")

	cobra.OnInitialize(func() {
		if cfg, _ := cmd.PersistentFlags().GetString("config"); cfg != "" {
			viper.SetConfigFile(cfg)
		} else {
			viper.SetConfigName("graphd")
			viper.SetConfigType("yaml")
			viper.AddConfigPath(".")
			viper.AddConfigPath("/etc/graphd")
		}
		viper.SetEnvPrefix("GRAPHD")
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()
	})
	_ = viper.BindPFlag("nats.url", cmd.PersistentFlags().Lookup("nats-url"))
	_ = viper.BindPFlag("db.path", cmd.PersistentFlags().Lookup("db"))
	_ = viper.BindPFlag("log.file", cmd.PersistentFlags().Lookup("log-file"))
	_ = viper.BindPFlag("log.level", cmd.PersistentFlags().Lookup("log-level"))

	cmd.AddCommand(serveCmd(), replayCmd(), verifyCmd())
	return cmd
}

// newLogger builds the process logger. With a log file configured, output
// rotates via lumberjack.
func newLogger() *slog.Logger {
	var out io.Writer = os.Stderr
	if file := viper.GetString("log.file"); file != "" {
		out = &lumberjack.Logger{
			Filename:   file,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}
	}
	var level slog.Level
	switch viper.GetString("log.level") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level}))
}

// natsConfig assembles the transport configuration, resolving credentials
// from the configured backend when one is set.
func natsConfig(ctx context.Context, logger *slog.Logger) transport.Config {
	cfg := transport.DefaultConfig()
	if url := viper.GetString("nats.url"); url != "" {
		cfg.URL = url
	}
	if credURL := viper.GetString("nats.credentials_url"); credURL != "" {
		provider, err := credentials.NewRuntimevarProvider(ctx, credURL)
		if err != nil {
			logger.Warn("credential backend unavailable, connecting unauthenticated", "error", err)
			return cfg
		}
		defer provider.Close()
		creds, err := provider.GetCredentials(ctx)
		if err != nil {
			logger.Warn("credential resolution failed, connecting unauthenticated", "error", err)
			return cfg
		}
		switch creds.Type {
		case credentials.TypeToken:
			cfg.URL = urlWithToken(cfg.URL, creds.Token)
		case credentials.TypeUserPassword:
			cfg.URL = urlWithUser(cfg.URL, creds.User, creds.Password)
		}
	}
	return cfg
}
