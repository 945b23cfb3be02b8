package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/rickgao/socksession/internal/gateway"
	"github.com/rickgao/socksession/internal/session"
)

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "keep the session alive and log lifecycle events until interrupted",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			d, err := newDeps(ctx, cmd)
			if err != nil {
				return err
			}
			defer d.Close()

			stopHealth := d.serveHealth()
			defer stopHealth()

			d.mgr.OnConnect(func(s *session.Session) {
				d.logger.Info("session connected",
					"initial_connection_at", s.InitialConnectionAt(),
					"reconnections", s.ConnectionErrorCount(),
					"sub", claimString(s, "sub"),
				)
			})
			d.mgr.OnDisconnect(func() {
				d.logger.Warn("session disconnected")
			})
			d.mgr.OnSessionExpiration(func() {
				d.logger.Warn("session expired")
				d.nav.signal("session expired")
			})

			if _, err := d.mgr.Connect(ctx); err != nil {
				return fmt.Errorf("connect: %w", err)
			}

			select {
			case <-ctx.Done():
				d.logger.Info("shutting down")
				return nil
			case reason := <-d.nav.Done():
				return cli.Exit("session ended: "+reason, 2)
			}
		},
	}
}

func callCommand() *cli.Command {
	return &cli.Command{
		Name:      "call",
		Usage:     "issue one request over the socket and print the response data",
		ArgsUsage: "<operation> [json-data]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "kind",
				Value: string(gateway.KindFetch),
				Usage: "fetch, post or notify",
			},
			&cli.StringFlag{
				Name:  "label",
				Value: "sessionctl",
				Usage: "label used in diagnostics",
			},
			&cli.IntFlag{
				Name:  "timeout",
				Usage: "deadline in seconds (default from config)",
			},
			&cli.IntFlag{
				Name:  "attempts",
				Usage: "maximum emissions (default from config)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			operation := cmd.Args().First()
			if operation == "" {
				return cli.Exit("operation is required", 1)
			}

			var data any
			if raw := cmd.Args().Get(1); raw != "" {
				if err := json.Unmarshal([]byte(raw), &data); err != nil {
					return fmt.Errorf("parse json-data: %w", err)
				}
			}

			kind := gateway.Kind(cmd.String("kind"))
			switch kind {
			case gateway.KindFetch, gateway.KindPost, gateway.KindNotify:
			default:
				return cli.Exit(fmt.Sprintf("unknown kind %q", kind), 1)
			}

			d, err := newDeps(ctx, cmd)
			if err != nil {
				return err
			}
			defer d.Close()

			var opts []gateway.CallOption
			if n := int(cmd.Int("timeout")); n > 0 {
				opts = append(opts, gateway.WithTimeout(n))
			}
			if n := int(cmd.Int("attempts")); n > 0 {
				opts = append(opts, gateway.WithAttempts(n))
			}

			result, err := d.gw.Call(ctx, kind, operation, data, cmd.String("label"), opts...)
			if err != nil {
				var gerr *gateway.Error
				if errors.As(err, &gerr) {
					return cli.Exit(gerr.Error(), 3)
				}
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "end the session on the server and clear the stored token",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "wait",
				Value: 10 * time.Second,
				Usage: "how long to wait for the server to confirm",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			d, err := newDeps(ctx, cmd)
			if err != nil {
				return err
			}
			defer d.Close()

			if _, err := d.mgr.Connect(ctx); err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			d.mgr.Logout("user")

			select {
			case <-d.nav.Done():
				if d.mgr.State() != session.StateLoggedOut {
					return cli.Exit("logout not confirmed", 2)
				}
				d.logger.Info("logged out")
				return nil
			case <-time.After(cmd.Duration("wait")):
				return cli.Exit("timed out waiting for logout confirmation", 2)
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}
}

func claimString(s *session.Session, key string) string {
	v, ok := s.Claim(key)
	if !ok {
		return ""
	}
	str, _ := v.(string)
	return str
}
