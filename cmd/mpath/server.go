package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"mpath/internal/engine/collection"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricsServer serves Prometheus metrics and a health endpoint reporting
// collection statistics.
type metricsServer struct {
	addr   string
	coll   *collection.Collection
	server *http.Server
}

func newMetricsServer(addr string, coll *collection.Collection) *metricsServer {
	return &metricsServer{addr: addr, coll: coll}
}

func (s *metricsServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		stats := s.coll.Stats()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":         "up",
			"roots":          stats.Roots,
			"cached_objects": stats.CachedObjects,
			"resolutions":    stats.Resolutions,
			"hits":           stats.Hits,
			"misses":         stats.Misses,
		})
	})
	return mux
}

func (s *metricsServer) Start() {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("metrics server starting", "addr", s.addr)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server failed", "error", err)
		}
	}()
}

func (s *metricsServer) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
