package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/rickgao/socksession/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "sessionctl",
		Usage:   "authenticate against a session server and issue calls over its socket",
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "configs/sessionctl.local.yaml",
				Usage:   "path to config file",
				Sources: cli.EnvVars("SESSIONCTL_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "env-file",
				Value: ".env",
				Usage: "dotenv file loaded before the config is expanded",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging (overrides config)",
			},
		},
		Before: loadEnv,
		Commands: []*cli.Command{
			watchCommand(),
			callCommand(),
			logoutCommand(),
			{
				Name:  "version",
				Usage: "print build information",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					fmt.Println(version.String())
					return nil
				},
			},
		},
	}
}

// loadEnv loads the dotenv file. A missing file is not an error.
func loadEnv(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := cmd.String("env-file")
	if path == "" {
		return ctx, nil
	}
	if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
		return ctx, fmt.Errorf("load %s: %w", path, err)
	}
	return ctx, nil
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}
