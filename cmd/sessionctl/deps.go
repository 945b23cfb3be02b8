package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v3"

	"github.com/rickgao/socksession/internal/config"
	"github.com/rickgao/socksession/internal/gateway"
	"github.com/rickgao/socksession/internal/metrics"
	"github.com/rickgao/socksession/internal/session"
	"github.com/rickgao/socksession/internal/store"
	"github.com/rickgao/socksession/internal/transport"
	"github.com/rickgao/socksession/internal/version"
)

// deps is the session stack built from configuration.
type deps struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	store    store.Store
	nav      *exitNavigator
	mgr      *session.Manager
	gw       *gateway.Gateway
}

func newDeps(ctx context.Context, cmd *cli.Command) (*deps, error) {
	configPath := cmd.String("config")

	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg.Debug || cmd.Bool("debug"))
	logger.Info("starting sessionctl",
		"version", version.Version,
		"commit", version.Commit,
		"config", configPath,
	)

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	logger.Info("store opened", "driver", cfg.Store.Driver, "namespace", cfg.Store.Namespace)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	header := http.Header{}
	header.Set("User-Agent", version.UserAgent())
	dialer := transport.NewWSDialer(transport.WSConfig{
		HandshakeTimeout: cfg.Transport.HandshakeTimeout,
		WriteTimeout:     cfg.Transport.WriteTimeout,
		PingInterval:     cfg.Transport.PingInterval,
		PingTimeout:      cfg.Transport.PingTimeout,
		Backoff: transport.BackoffConfig{
			InitialDelay: cfg.Transport.ReconnectBaseDelay,
			MaxDelay:     cfg.Transport.ReconnectMaxDelay,
			Multiplier:   2,
			Jitter:       true,
		},
	}, header, logger.With("component", "transport"))

	nav := newExitNavigator(logger)
	mgr := session.NewManager(session.Config{
		URL:                      cfg.Server.URL,
		LoginURL:                 cfg.Server.LoginURL,
		LogoutURL:                cfg.Server.LogoutURL,
		Token:                    cfg.Session.Token,
		InactivityTimeoutMinutes: cfg.Session.InactivityTimeoutMinutes,
		ReconnectWait:            time.Duration(cfg.Session.ReconnectionWaitSeconds) * time.Second,
		Dialer:                   dialer,
		Store:                    st,
		Navigator:                nav,
		Metrics:                  m,
	}, logger)

	gw := gateway.New(mgr, gateway.Config{
		TimeoutSeconds: cfg.Gateway.TimeoutSeconds,
		Attempts:       cfg.Gateway.Attempts,
		Metrics:        m,
	}, logger)

	return &deps{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  m,
		store:    st,
		nav:      nav,
		mgr:      mgr,
		gw:       gw,
	}, nil
}

func (d *deps) Close() {
	if err := d.mgr.Close(); err != nil {
		d.logger.Warn("close session", "error", err)
	}
	if err := d.store.Close(); err != nil {
		d.logger.Warn("close store", "error", err)
	}
}

// exitNavigator ends the command on the first navigation request.
type exitNavigator struct {
	logger *slog.Logger
	done   chan string
}

func newExitNavigator(logger *slog.Logger) *exitNavigator {
	return &exitNavigator{logger: logger, done: make(chan string, 1)}
}

func (n *exitNavigator) Redirect(url string) {
	n.logger.Warn("session ended, sign in again", "url", url)
	n.signal("redirect " + url)
}

func (n *exitNavigator) Reload() {
	n.logger.Warn("session belongs to another user, restart required")
	n.signal("reload")
}

func (n *exitNavigator) signal(reason string) {
	select {
	case n.done <- reason:
	default:
	}
}

// Done yields the reason of the first navigation request.
func (n *exitNavigator) Done() <-chan string {
	return n.done
}
