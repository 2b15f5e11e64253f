package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dvloznov/voice-expense/internal/api/handlers"
	"github.com/dvloznov/voice-expense/internal/api/middleware"
	"github.com/dvloznov/voice-expense/internal/bootstrap"
	"github.com/dvloznov/voice-expense/internal/config"
	"github.com/dvloznov/voice-expense/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log := logger.New("info")
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	port := flag.String("port", cfg.App.Port, "HTTP server port")
	flag.Parse()

	log := logger.NewForEnv(cfg.App.Env, cfg.App.LogLevel)
	ctx := context.Background()

	app, err := bootstrap.Build(ctx, cfg, prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build extraction pipeline")
	}
	defer app.Close()
	defer app.Tracker.Flush(2 * time.Second)

	log.Info().
		Str("extraction", cfg.Providers.Extraction).
		Str("transcription", cfg.Providers.Transcription).
		Str("usage_store", cfg.Usage.Backend).
		Msg("Pipeline ready")

	expenses := handlers.NewExpensesHandler(app.Pipeline, app.Governor, cfg.Input.MaxAudioBytes)

	api := http.NewServeMux()
	api.HandleFunc("/api/expenses/parse", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			expenses.Parse(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
		}
	})
	api.HandleFunc("/api/usage", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			expenses.Usage(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
		}
	})

	// Health and metrics stay outside Auth.
	mux := http.NewServeMux()
	mux.HandleFunc("/health", handlers.Health)
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/api/", middleware.Auth(api))

	handler := middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(mux),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Providers.Timeout*2 + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
