package app

import (
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type routes struct {
	log     Logger
	cfg     Config
	pool    *pgxpool.Pool
	api     interface{ Register(*http.ServeMux) }
	metrics http.Handler
}

func (rt routes) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if rt.cfg.ReadinessRequireDB && rt.pool == nil {
			http.Error(w, "db not configured", http.StatusServiceUnavailable)
			return
		}
		if rt.pool != nil {
			if err := PingDB(r.Context(), rt.pool, 2*time.Second); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				rt.log.Info("readyz.db.not_ready", "err", err)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics)
	}
	if rt.api != nil {
		rt.api.Register(mux)
	}
}
