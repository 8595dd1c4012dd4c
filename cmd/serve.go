package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/impactpool/milestone-cli/internal/milestone"
	"github.com/impactpool/milestone-cli/internal/model"
	"github.com/impactpool/milestone-cli/internal/registry"
	"github.com/impactpool/milestone-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for totals reporting and certificate claims",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env),
		}

		zap.L().Info("starting server", zap.Int("port", port))
		return runServer(ctx, srv)
	},
}

// runServer serves until ctx is canceled, then drains in-flight requests
// on a fresh timeout context before returning.
func runServer(ctx context.Context, srv *http.Server) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("server shutdown", zap.Error(err))
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server listen")
	}
	<-done
	return nil
}

func newRouter(env *env) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/totals", handleTotals(env))
		r.Get("/achievements", handleListAchievements(env))
		r.Post("/achievements/{id}/claim", handleClaim(env))
		r.Get("/metrics", handleMetrics(env))
	})

	return r
}

func handleTotals(env *env) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var report milestone.TotalReport
		if err := json.NewDecoder(req.Body).Decode(&report); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		created, err := env.Orchestrator.OnNewTotal(req.Context(), report)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"new_achievements": created,
			"count":            len(created),
		})
	}
}

func handleListAchievements(env *env) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		filter := store.AchievementFilter{
			Recipient: q.Get("recipient"),
			State:     model.AchievementState(q.Get("state")),
			Category:  model.Category(q.Get("category")),
		}

		records, err := env.Registry.List(req.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list achievements")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"achievements": records,
			"count":        len(records),
		})
	}
}

func handleClaim(env *env) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")

		rec, err := env.Registry.Claim(req.Context(), id)
		switch {
		case eris.Is(err, registry.ErrNotFound):
			writeError(w, http.StatusNotFound, "achievement not found")
			return
		case eris.Is(err, registry.ErrAlreadyFinalized):
			writeJSON(w, http.StatusConflict, rec)
			return
		case err != nil:
			writeError(w, http.StatusInternalServerError, "claim failed")
			return
		}

		if env.CRM != nil && rec.State == model.StateMinted {
			env.CRM.RecordMint(req.Context(), *rec)
		}

		writeJSON(w, http.StatusOK, rec)
	}
}

func handleMetrics(env *env) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		snap, err := env.Collector.Collect(req.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "collect metrics")
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
