package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/directory-cli/internal/model"
	"github.com/sells-group/directory-cli/internal/report"
	"github.com/sells-group/directory-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the validation HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		r := chi.NewRouter()
		r.Use(chimw.RequestID)
		r.Use(chimw.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			if err := env.Store.Ping(req.Context()); err != nil {
				zap.L().Error("health check failed", zap.Error(err))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		// Synchronous single-record validation.
		r.Post("/validate", func(w http.ResponseWriter, req *http.Request) {
			var in model.ProviderRecord
			if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
				return
			}
			record := model.NewProviderRecord(in.NPI)
			in.ValidationStatus = record.ValidationStatus
			in.ReviewPriority = record.ReviewPriority

			res, err := env.Orch.Run(req.Context(), &in)
			if err != nil {
				zap.L().Error("validate request failed",
					zap.String("npi", in.NPI),
					zap.Error(err))
				writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
				return
			}
			writeJSON(w, http.StatusOK, res.Record)
		})

		// Asynchronous batch validation. Accepts the roster records
		// inline, answers with the batch ID, and processes in the
		// background.
		r.Post("/batches", func(w http.ResponseWriter, req *http.Request) {
			var in []*model.ProviderRecord
			if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
				return
			}
			if len(in) == 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "empty roster"})
				return
			}
			for i, p := range in {
				fresh := model.NewProviderRecord(p.NPI)
				in[i].ValidationStatus = fresh.ValidationStatus
				in[i].ReviewPriority = fresh.ReviewPriority
			}

			batch := model.NewValidationBatch(in)
			if err := env.Store.CreateBatch(req.Context(), batch); err != nil {
				zap.L().Error("batch create failed", zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "store failure"})
				return
			}

			go func() {
				outcome, err := env.Runner.Run(ctx, batch)
				if err != nil {
					zap.L().Error("batch processing failed",
						zap.String("batch_id", batch.BatchID),
						zap.Error(err))
					return
				}
				if err := env.Store.SaveProviders(ctx, batch.BatchID, outcome.Completed); err != nil {
					zap.L().Error("batch save failed",
						zap.String("batch_id", batch.BatchID),
						zap.Error(err))
					return
				}
				rep := report.Generate(batch, outcome.Completed, outcome.Failed)
				if err := env.Store.SaveReport(ctx, rep); err != nil {
					zap.L().Error("report save failed",
						zap.String("batch_id", batch.BatchID),
						zap.Error(err))
					return
				}
				zap.L().Info("batch processing complete",
					zap.String("batch_id", batch.BatchID),
					zap.Int("providers", len(outcome.Completed)),
					zap.Int("failed", outcome.Failed),
				)
			}()

			writeJSON(w, http.StatusAccepted, map[string]string{
				"status":   "accepted",
				"batch_id": batch.BatchID,
			})
		})

		r.Get("/batches/{batchID}/report", func(w http.ResponseWriter, req *http.Request) {
			batchID := chi.URLParam(req, "batchID")
			rep, err := env.Store.LatestReport(req.Context(), batchID)
			if err != nil {
				if eris.Is(err, store.ErrNotFound) {
					writeJSON(w, http.StatusNotFound, map[string]string{"error": "report not found"})
					return
				}
				zap.L().Error("report lookup failed",
					zap.String("batch_id", batchID),
					zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "store failure"})
				return
			}
			if req.URL.Query().Get("format") == "markdown" {
				w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
				fmt.Fprint(w, report.Format(rep))
				return
			}
			writeJSON(w, http.StatusOK, rep)
		})

		r.Get("/providers/{batchID}/{npi}", func(w http.ResponseWriter, req *http.Request) {
			p, err := env.Store.GetProvider(req.Context(), chi.URLParam(req, "batchID"), chi.URLParam(req, "npi"))
			if err != nil {
				if eris.Is(err, store.ErrNotFound) {
					writeJSON(w, http.StatusNotFound, map[string]string{"error": "provider not found"})
					return
				}
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "store failure"})
				return
			}
			writeJSON(w, http.StatusOK, p)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
