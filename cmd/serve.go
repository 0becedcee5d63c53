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

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/monitoring"
	"github.com/sells-group/leadgen/internal/pipeline"
	"github.com/sells-group/leadgen/internal/store"
)

var (
	servePort    int
	serveWorkers int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP trigger for lead generation jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "serve", discoveryMode{Search: true})
		if err != nil {
			return err
		}
		defer env.Close()

		// Jobs share the server context: a shutdown cuts running jobs
		// short at their next stage boundary.
		queue := pipeline.NewQueue(env.Runner, cfg.Pipeline.QueueSize)
		queue.Start(ctx, serveWorkers)
		defer queue.Close()

		checker := monitoring.NewChecker(
			monitoring.NewCollector(env.Store, env.Publisher.Queue()),
			monitoring.NewAlerter(cfg.Monitoring),
			cfg.Monitoring,
		)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr: fmt.Sprintf(":%d", port),
			Handler: newRouter(&leadServer{
				ledger:   env.Store,
				queue:    queue,
				breakers: env.Breakers,
				budget:   cfg.Pipeline.Timeout(),
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// A listener failure cancels gctx, which stops the background loops.
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			pruneCrawlCache(gctx, env.Store, time.Hour)
			return nil
		})
		g.Go(func() error {
			checker.Run(gctx)
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
			return nil
		})
		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port), zap.Int("workers", serveWorkers))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().IntVar(&serveWorkers, "workers", 2, "jobs run at the same time")
	rootCmd.AddCommand(serveCmd)
}

// jobLedger is the part of the store used by the HTTP trigger.
type jobLedger interface {
	CreateJob(ctx context.Context, job *model.PipelineJob) error
	FinishJob(ctx context.Context, rec model.JobRecord) error
	GetJob(ctx context.Context, jobID string) (*model.JobRecord, error)
}

type jobSubmitter interface {
	Submit(job *model.PipelineJob) error
}

type breakerStates interface {
	States() map[string]string
}

// leadServer accepts lead-gen requests and hands them to the job queue.
type leadServer struct {
	ledger   jobLedger
	queue    jobSubmitter
	breakers breakerStates
	budget   time.Duration
}

func newRouter(s *leadServer) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Post("/lead-gen", s.createJob)
	r.Get("/lead-gen/{jobID}", s.getJob)
	return r
}

func (s *leadServer) health(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{"status": "ok"}
	if s.breakers != nil {
		resp["breakers"] = s.breakers.States()
	}
	writeJSON(w, http.StatusOK, resp)
}

type createJobResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// createJob validates the request, records the job and enqueues it. The
// response is sent before any pipeline work starts.
func (s *leadServer) createJob(w http.ResponseWriter, r *http.Request) {
	var req model.LeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job := model.NewPipelineJob(req, nil, s.budget)
	log := zap.L().With(zap.String("job_id", job.ID), zap.String("request_id", middleware.GetReqID(r.Context())))

	if err := s.ledger.CreateJob(r.Context(), job); err != nil {
		log.Error("create job failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not create job")
		return
	}
	if err := s.queue.Submit(job); err != nil {
		log.Error("enqueue job failed", zap.Error(err))
		rec := model.JobRecord{ID: job.ID, Request: job.Request, State: model.JobDone, Error: err.Error()}
		if ferr := s.ledger.FinishJob(context.WithoutCancel(r.Context()), rec); ferr != nil {
			log.Warn("record rejected job", zap.Error(ferr))
		}
		writeError(w, http.StatusInternalServerError, "could not start job")
		return
	}

	log.Info("job accepted", zap.String("city", req.City), zap.String("market", req.Market))
	writeJSON(w, http.StatusAccepted, createJobResponse{
		JobID:   job.ID,
		Status:  "processing",
		Message: fmt.Sprintf("Lead generation started for %s in %s", req.Market, req.Location()),
	})
}

func (s *leadServer) getJob(w http.ResponseWriter, r *http.Request) {
	rec, err := s.ledger.GetJob(r.Context(), chi.URLParam(r, "jobID"))
	switch {
	case eris.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "job not found")
	case err != nil:
		zap.L().Error("get job failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load job")
	default:
		writeJSON(w, http.StatusOK, rec)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// cachePruner is the part of the store that expires crawl cache entries.
type cachePruner interface {
	DeleteExpiredCrawls(ctx context.Context) (int, error)
}

// pruneCrawlCache deletes expired crawl cache entries now and then every
// interval until ctx ends.
func pruneCrawlCache(ctx context.Context, p cachePruner, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		n, err := p.DeleteExpiredCrawls(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			zap.L().Warn("prune crawl cache", zap.Error(err))
		case n > 0:
			zap.L().Info("pruned crawl cache", zap.Int("deleted", n))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
