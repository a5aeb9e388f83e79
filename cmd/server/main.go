package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/arrowlake/numerion"
	"github.com/arrowlake/numerion/internal/config"
	"github.com/arrowlake/numerion/internal/obslog"
	"github.com/arrowlake/numerion/internal/telemetry"
)

func main() {
	cfg := config.Load()
	log := obslog.Setup(cfg.LogLevel)
	log.Info("starting numerion research server", "port", cfg.Port)

	ctx := context.Background()
	svc, err := numerion.NewServiceFromConfig(ctx, cfg)
	if err != nil {
		log.Error("failed to initialize service", "error", err)
		os.Exit(1)
	}
	zl := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(zerologLevel(cfg.LogLevel))
	svc.AddObserver(telemetry.NewConsoleObserver(zl, true))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /api/v1/runs/indicator-search", submitIndicatorSearchHandler(svc))
	mux.HandleFunc("POST /api/v1/runs/game-training", submitGameTrainingHandler(svc))
	mux.HandleFunc("GET /api/v1/runs/{run_id}", runStatusHandler(svc))
	mux.HandleFunc("POST /api/v1/runs/{run_id}/cancel", cancelRunHandler(svc))
	mux.Handle("GET /ws", svc.FeedHandler())

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server listening", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	log.Info("server exited gracefully")
}

func submitIndicatorSearchHandler(svc *numerion.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rc numerion.RunConfig
		if err := json.NewDecoder(r.Body).Decode(&rc); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		runID := numerion.NewRunID()
		if _, _, err := svc.SubmitIndicatorSearchRun(context.Background(), runID, rc); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
	}
}

func submitGameTrainingHandler(svc *numerion.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var gc numerion.GameTrainingConfig
		if err := json.NewDecoder(r.Body).Decode(&gc); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		runID := numerion.NewRunID()
		if _, _, err := svc.SubmitGameTrainingRun(context.Background(), runID, gc); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
	}
}

func runStatusHandler(svc *numerion.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID := r.PathValue("run_id")
		row, err := svc.RunStatus(r.Context(), runID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, row)
	}
}

func cancelRunHandler(svc *numerion.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID := r.PathValue("run_id")
		if !svc.CancelRun(runID) {
			http.Error(w, "run is not active", http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func zerologLevel(level string) zerolog.Level {
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return l
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
