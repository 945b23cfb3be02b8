package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// serveHealth starts the health and metrics listener when metrics.port is
// set. The returned function shuts it down.
func (d *deps) serveHealth() func() {
	if d.cfg.Metrics.Port <= 0 {
		return func() {}
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", d.cfg.Metrics.Port),
		Handler: d.healthHandler(),
	}

	go func() {
		d.logger.Info("starting health server", "port", d.cfg.Metrics.Port, "metrics_path", d.cfg.Metrics.Path)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			d.logger.Error("health server error", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}
}

func (d *deps) healthHandler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle(d.cfg.Metrics.Path, promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		s := d.mgr.Session()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		health.Components["session"] = map[string]any{
			"state":                 d.mgr.State().String(),
			"connected":             s.Connected(),
			"initial_connection_at": s.InitialConnectionAt(),
			"last_connection_at":    s.LastConnectionAt(),
			"reconnections":         s.ConnectionErrorCount(),
		}
		if !s.Connected() {
			health.Status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
