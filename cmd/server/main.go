package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"voicedesk/agent/internal/api"
	"voicedesk/agent/internal/callws"
	"voicedesk/agent/internal/classify"
	"voicedesk/agent/internal/config"
	"voicedesk/agent/internal/health"
	"voicedesk/agent/internal/scheduling"
	"voicedesk/agent/internal/session"
	"voicedesk/agent/internal/store"
)

func main() {
	// Load .env file if present (ignored if missing)
	_ = godotenv.Load()

	cfg := config.Load()

	st := store.New()
	classifier := classify.NewClient(cfg.Intent.Endpoint, cfg.Intent.APIKey,
		time.Duration(cfg.Intent.TimeoutMs)*time.Millisecond)
	scheduler := scheduling.NewClient(cfg.Scheduler.Endpoint, cfg.Scheduler.APIKey,
		time.Duration(cfg.Scheduler.TimeoutMs)*time.Millisecond)
	mgr := session.NewManager(cfg, st, classifier, scheduler)

	h := api.NewHandlers(cfg, st, mgr)
	mux := http.NewServeMux()
	mux.Handle("/", api.NewRouter(h))

	// Telephony gateway channel
	reg := callws.NewRegistry()
	wss := callws.NewServer(cfg, st, mgr, reg)
	mux.HandleFunc("/ws/call", wss.HandleCallWS)

	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		status := health.CheckAll(ctx, cfg)
		w.Header().Set("Content-Type", "application/json")
		if !status.OK {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(status)
	})

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           logMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigc
		log.Printf("shutdown signal received; stopping server...")
		// Finalize live sessions so their telemetry is not lost
		for _, id := range st.ListSessionIDs() {
			if _, err := mgr.Finalize(id); err == nil {
				log.Printf("finalized session %s on shutdown", id)
			}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	log.Printf("server starting on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Println("server error:", err)
		os.Exit(1)
	}
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}
