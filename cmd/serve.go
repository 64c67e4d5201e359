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
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/prospecting-cli/internal/model"
	"github.com/sells-group/prospecting-cli/internal/scheduler"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the prospecting API server and schedule runner",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		mgr := scheduler.New(env.Store, env.Engine, env.Materializer)
		if err := mgr.Start(ctx); err != nil {
			return eris.Wrap(err, "start scheduler")
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(env, mgr),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, ctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})

		g.Go(func() error {
			<-ctx.Done()
			zap.L().Info("shutting down")
			mgr.Stop()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		return g.Wait()
	},
}

// newRouter builds the HTTP API.
func newRouter(env *appEnv, mgr *scheduler.Manager) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/prospect", handleProspect(env))
		r.Get("/schedules", handleListSchedules(env))
		r.Post("/schedules", handleCreateSchedule(env, mgr))
		r.Patch("/schedules/{id}", handleUpdateSchedule(env, mgr))
		r.Post("/schedules/{id}/toggle", handleToggleSchedule(env, mgr))
		r.Delete("/schedules/{id}", handleDeleteSchedule(env, mgr))
		r.Get("/runs", handleListRuns(env))
	})

	return r
}

// prospectRequest is the POST /api/prospect body. The ICP must already be
// snapshotted in the store (by the prospect or schedule commands, or an
// earlier API call).
type prospectRequest struct {
	ICPID       string `json:"icp_id"`
	MaxResults  int    `json:"max_results"`
	Materialize bool   `json:"materialize"`
	OwnerID     string `json:"owner_id"`
}

func handleProspect(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req prospectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeRunError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.ICPID == "" {
			writeRunError(w, http.StatusBadRequest, "icp_id is required")
			return
		}

		ctx := r.Context()
		icp, err := env.Store.GetICP(ctx, req.ICPID)
		if err != nil {
			writeRunError(w, http.StatusNotFound, "unknown icp")
			return
		}

		maxResults := req.MaxResults
		if maxResults <= 0 {
			maxResults = cfg.Prospect.DefaultMaxResults
		}

		run, err := env.Store.CreateProspectingRun(ctx, model.ProspectingRun{
			ICPID:   icp.ID,
			Trigger: "manual",
		})
		if err != nil {
			writeRunError(w, http.StatusInternalServerError, "record run failed")
			return
		}

		result, err := env.Engine.Run(ctx, *icp, maxResults)
		if err != nil {
			zap.L().Error("api prospect run failed", zap.Error(err))
			_ = env.Store.CompleteProspectingRun(ctx, run.ID, "failed", 0, err.Error())
			writeRunError(w, http.StatusBadGateway, err.Error())
			return
		}
		_ = env.Store.CompleteProspectingRun(ctx, run.ID, "complete", result.Count, "")

		if req.Materialize {
			ownerID := req.OwnerID
			if ownerID == "" {
				ownerID = icp.OwnerID
			}
			if _, err := env.Materializer.Materialize(ctx, result.Prospects, *icp, ownerID); err != nil {
				zap.L().Error("api materialize failed", zap.Error(err))
			}
		}

		writeJSON(w, http.StatusOK, result)
	}
}

func handleListSchedules(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		schedules, err := env.Store.ListSchedules(r.Context(), false)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list schedules failed")
			return
		}
		if schedules == nil {
			schedules = []model.Schedule{}
		}
		writeJSON(w, http.StatusOK, schedules)
	}
}

type scheduleRequest struct {
	Name                string `json:"name"`
	ICPID               string `json:"icp_id"`
	Frequency           string `json:"frequency"`
	MaxResults          int    `json:"max_results"`
	AutoCreateCompanies bool   `json:"auto_create_companies"`
	OwnerID             string `json:"owner_id"`
}

func handleCreateSchedule(env *appEnv, mgr *scheduler.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req scheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Name == "" || req.ICPID == "" {
			writeError(w, http.StatusBadRequest, "name and icp_id are required")
			return
		}
		freq, err := model.ParseFrequency(req.Frequency)
		if err != nil {
			writeError(w, http.StatusBadRequest, "frequency must be daily, weekly, or monthly")
			return
		}

		ctx := r.Context()
		icp, err := env.Store.GetICP(ctx, req.ICPID)
		if err != nil {
			writeError(w, http.StatusNotFound, "unknown icp")
			return
		}

		maxResults := req.MaxResults
		if maxResults <= 0 {
			maxResults = cfg.Prospect.DefaultMaxResults
		}
		ownerID := req.OwnerID
		if ownerID == "" {
			ownerID = icp.OwnerID
		}

		next := freq.NextRun(time.Now())
		sched, err := env.Store.CreateSchedule(ctx, model.Schedule{
			Name:                req.Name,
			ICPID:               icp.ID,
			Frequency:           freq,
			MaxResults:          maxResults,
			AutoCreateCompanies: req.AutoCreateCompanies,
			IsActive:            true,
			NextRunAt:           &next,
			OwnerID:             ownerID,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "create schedule failed")
			return
		}

		if err := mgr.Apply(*sched); err != nil {
			zap.L().Error("register schedule failed",
				zap.String("schedule_id", sched.ID),
				zap.Error(err),
			)
		}

		writeJSON(w, http.StatusCreated, sched)
	}
}

// scheduleUpdateRequest is the PATCH /api/schedules/{id} body. Absent fields
// are left unchanged.
type scheduleUpdateRequest struct {
	Name                *string `json:"name"`
	Frequency           *string `json:"frequency"`
	MaxResults          *int    `json:"max_results"`
	AutoCreateCompanies *bool   `json:"auto_create_companies"`
	OwnerID             *string `json:"owner_id"`
}

func handleUpdateSchedule(env *appEnv, mgr *scheduler.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req scheduleUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		ctx := r.Context()
		sched, err := env.Store.GetSchedule(ctx, chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusNotFound, "unknown schedule")
			return
		}

		if req.Name != nil {
			if *req.Name == "" {
				writeError(w, http.StatusBadRequest, "name cannot be empty")
				return
			}
			sched.Name = *req.Name
		}
		if req.MaxResults != nil && *req.MaxResults > 0 {
			sched.MaxResults = *req.MaxResults
		}
		if req.AutoCreateCompanies != nil {
			sched.AutoCreateCompanies = *req.AutoCreateCompanies
		}
		if req.OwnerID != nil {
			sched.OwnerID = *req.OwnerID
		}
		if req.Frequency != nil {
			freq, err := model.ParseFrequency(*req.Frequency)
			if err != nil {
				writeError(w, http.StatusBadRequest, "frequency must be daily, weekly, or monthly")
				return
			}
			// A frequency change restarts the period from now.
			sched.Frequency = freq
			next := freq.NextRun(time.Now())
			sched.NextRunAt = &next
		}

		if err := env.Store.UpdateSchedule(ctx, *sched); err != nil {
			writeError(w, http.StatusInternalServerError, "update schedule failed")
			return
		}

		// Re-registers the cron trigger under the new frequency.
		if err := mgr.Apply(*sched); err != nil {
			zap.L().Error("apply schedule failed",
				zap.String("schedule_id", sched.ID),
				zap.Error(err),
			)
		}

		writeJSON(w, http.StatusOK, sched)
	}
}

func handleToggleSchedule(env *appEnv, mgr *scheduler.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := chi.URLParam(r, "id")

		sched, err := env.Store.GetSchedule(ctx, id)
		if err != nil {
			writeError(w, http.StatusNotFound, "unknown schedule")
			return
		}

		sched.IsActive = !sched.IsActive
		if err := env.Store.SetScheduleActive(ctx, sched.ID, sched.IsActive); err != nil {
			writeError(w, http.StatusInternalServerError, "toggle schedule failed")
			return
		}

		if err := mgr.Apply(*sched); err != nil {
			zap.L().Error("apply schedule failed",
				zap.String("schedule_id", sched.ID),
				zap.Error(err),
			)
		}

		writeJSON(w, http.StatusOK, sched)
	}
}

func handleDeleteSchedule(env *appEnv, mgr *scheduler.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		if err := env.Store.DeleteSchedule(r.Context(), id); err != nil {
			writeError(w, http.StatusNotFound, "unknown schedule")
			return
		}
		mgr.Unregister(id)

		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func handleListRuns(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runs, err := env.Store.ListProspectingRuns(r.Context(), 50)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list runs failed")
			return
		}
		if runs == nil {
			runs = []model.ProspectingRun{}
		}
		writeJSON(w, http.StatusOK, runs)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

// writeRunError mirrors the success shape of a prospecting run so clients can
// always read prospects and count.
func writeRunError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"success":   false,
		"error":     msg,
		"prospects": []model.Prospect{},
		"count":     0,
	})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
