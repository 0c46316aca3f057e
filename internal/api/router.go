package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Harshitk-cp/condensate/internal/api/handlers"
	mw "github.com/Harshitk-cp/condensate/internal/api/middleware"
	"github.com/Harshitk-cp/condensate/internal/buildconfig"
	"github.com/Harshitk-cp/condensate/internal/config"
	"github.com/Harshitk-cp/condensate/internal/domain"
	"github.com/Harshitk-cp/condensate/internal/guardrail"
	"github.com/Harshitk-cp/condensate/internal/lexical"
	"github.com/Harshitk-cp/condensate/internal/llm"
	"github.com/Harshitk-cp/condensate/internal/ner"
	"github.com/Harshitk-cp/condensate/internal/observe"
	"github.com/Harshitk-cp/condensate/internal/provenance"
	"github.com/Harshitk-cp/condensate/internal/service"
	"github.com/Harshitk-cp/condensate/internal/store"
	"github.com/Harshitk-cp/condensate/internal/workerpool"
)

// App holds the router and the background components whose lifecycle the
// server manages.
type App struct {
	Router *chi.Mux
	Pool   *workerpool.Pool
	Sink   *observe.Sink
	Decay  *service.DecayWorker

	limiter      *mw.RateLimiter
	stopCh       chan struct{}
	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(ctx context.Context, db *pgxpool.Pool, logger *zap.Logger) (*App, error) {
	// Stores
	tenantStore := store.NewTenantStore(db)
	projectStore := store.NewProjectStore(db)
	episodeStore := store.NewEpisodeStore(db)
	entityStore := store.NewEntityStore(db)
	assertionStore := store.NewAssertionStore(db)
	relationStore := store.NewRelationStore(db)
	policyStore := store.NewPolicyStore(db)
	factWriter := store.NewFactWriter(db)

	// Collaborators
	guard, err := guardrail.Open(config.GuardrailPatternsFile(), config.InstructionBlockThreshold(), config.SafetyBlockThreshold())
	if err != nil {
		return nil, err
	}

	secret, explicit := config.Secret()
	if !explicit {
		logger.Warn("CONDENSATE_SECRET not set, signing with the development secret")
	}
	signer, err := provenance.NewSigner(secret)
	if err != nil {
		return nil, err
	}

	lex := lexical.Bootstrap(ctx, config.StopwordsFile(), config.StopwordsURL(), logger)

	var extractor domain.EntityExtractor = ner.NoOp{}
	if url := config.NERURL(); url != "" {
		extractor = ner.NewModelBacked(url, logger)
		logger.Info("NER service configured", zap.String("url", url))
	}

	var lm domain.LanguageModelExtractor
	model := ""
	if config.LLMEnabled() {
		lm, err = llm.NewExtractor(llm.Settings{
			Provider:       config.LLMProvider(),
			BaseURL:        config.LLMBaseURL(),
			APIKey:         config.LLMAPIKey(),
			Model:          config.LLMModel(),
			MaxConcurrency: config.LLMMaxConcurrency(),
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("llm extractor: %w", err)
		}
		model = lm.Model()
		logger.Info("LLM extraction enabled", zap.String("provider", config.LLMProvider()), zap.String("model", model))
	}

	pool := workerpool.New(workerpool.Options{
		Name:            "condense",
		InitialWorkers:  config.PoolInitialWorkers(),
		MinWorkers:      config.PoolMinWorkers(),
		MaxWorkers:      config.PoolMaxWorkers(),
		MonitorInterval: config.PoolMonitorInterval(),
	}, logger)
	sink := observe.NewSink(observe.DefaultBuffer, observe.DefaultRecent, logger)

	// Services
	graphSvc := service.NewCognitiveGraphService(assertionStore, entityStore, relationStore, logger)
	condenser := service.NewCondenser(service.CondenserDeps{
		Pool:       pool,
		Extractor:  extractor,
		Lexical:    lex,
		LLM:        lm,
		Resolver:   service.NewResolver(entityStore, logger),
		Edges:      service.NewEdgeSynthesizer(relationStore, logger),
		Graph:      graphSvc,
		Admitter:   service.NewAdmitter(guard, signer, domain.ParseReviewMode(config.ReviewMode()), model),
		Assertions: assertionStore,
		Facts:      factWriter,
		Sink:       sink,
	}, logger)
	episodeSvc := service.NewEpisodeService(episodeStore, logger)
	reviewSvc := service.NewReviewService(assertionStore, logger)

	decay := service.NewDecayWorker(graphSvc, sink, logger)
	decay.SetInterval(config.DecayInterval())
	decay.SetRate(config.DecayRate())

	app := &App{
		Router:    chi.NewRouter(),
		Pool:      pool,
		Sink:      sink,
		Decay:     decay,
		limiter:   mw.NewRateLimiter(config.RateLimitRPS(), config.RateLimitBurst()),
		stopCh:    make(chan struct{}),
		startTime: time.Now(),
	}

	app.routes(routeHandlers{
		tenants:  handlers.NewTenantHandler(tenantStore),
		projects: handlers.NewProjectHandler(projectStore),
		episodes: handlers.NewEpisodeHandler(projectStore, episodeSvc, condenser, logger),
		condense: handlers.NewCondenseHandler(projectStore, episodeSvc, condenser, logger),
		review:   handlers.NewReviewHandler(projectStore, reviewSvc),
		graph:    handlers.NewGraphHandler(projectStore, entityStore, assertionStore, policyStore, graphSvc, decay, logger),
		jobs:     handlers.NewJobsHandler(sink),
		tenantDB: tenantStore,
		health:   db.Ping,
	}, logger)

	return app, nil
}

type routeHandlers struct {
	tenants  *handlers.TenantHandler
	projects *handlers.ProjectHandler
	episodes *handlers.EpisodeHandler
	condense *handlers.CondenseHandler
	review   *handlers.ReviewHandler
	graph    *handlers.GraphHandler
	jobs     *handlers.JobsHandler
	tenantDB domain.TenantStore
	health   func(context.Context) error
}

func (app *App) routes(h routeHandlers, logger *zap.Logger) {
	r := app.Router
	metrics := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metrics.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(app.limiter.Middleware)

	r.Get("/health", healthHandler(h.health))
	r.Get("/stats", app.statsHandler())
	r.Handle("/metrics", promhttp.Handler())

	// Bootstrap endpoint, no auth.
	r.Post("/v1/tenants", h.tenants.Create)

	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(h.tenantDB))

		r.Get("/jobs", h.jobs.List)
		r.Post("/graph/decay", h.graph.TriggerDecay)

		r.Route("/projects", func(r chi.Router) {
			r.Post("/", h.projects.Create)
			r.Get("/", h.projects.List)

			r.Route("/{projectID}", func(r chi.Router) {
				r.Get("/", h.projects.Get)

				r.Post("/episodes", h.episodes.Ingest)
				r.Get("/episodes", h.episodes.List)
				r.Post("/condense", h.condense.Condense)

				r.Get("/entities", h.graph.Entities)
				r.Get("/assertions", h.graph.Assertions)
				r.Get("/policies", h.graph.Policies)
				r.Post("/graph/activate", h.graph.Activate)
				r.Post("/graph/hebbian", h.graph.Hebbian)

				r.Route("/review", func(r chi.Router) {
					r.Get("/pending", h.review.ListPending)
					r.Post("/bulk-approve", h.review.BulkApprove)
					r.Post("/{id}/approve", h.review.Approve)
					r.Post("/{id}/reject", h.review.Reject)
				})
			})
		})
	})
}

// Start launches the background workers.
func (app *App) Start() {
	app.Sink.Start()
	app.Decay.Start()
	go app.limiter.RunCleanup(10*time.Minute, app.stopCh)
}

// Shutdown stops the workers, then drains the pool and the event sink.
func (app *App) Shutdown(ctx context.Context) error {
	close(app.stopCh)
	app.Decay.Stop()
	err := app.Pool.Shutdown(ctx)
	app.Sink.Stop()
	return err
}

func healthHandler(ping func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "ok",
			"version": buildconfig.Version(),
		})
	}
}

func (app *App) statsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)
		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"pool":           app.Pool.Stats(),
			"jobs_dropped":   app.Sink.Dropped(),
			"memory": map[string]any{
				"alloc_mb": float64(memStats.Alloc) / 1024 / 1024,
				"sys_mb":   float64(memStats.Sys) / 1024 / 1024,
				"num_gc":   memStats.NumGC,
			},
			"build": buildconfig.VersionInfo(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Compile-time interface checks.
var (
	_ domain.TenantStore            = (*store.TenantStore)(nil)
	_ domain.ProjectStore           = (*store.ProjectStore)(nil)
	_ domain.EpisodeStore           = (*store.EpisodeStore)(nil)
	_ domain.EntityStore            = (*store.EntityStore)(nil)
	_ domain.AssertionStore         = (*store.AssertionStore)(nil)
	_ domain.RelationStore          = (*store.RelationStore)(nil)
	_ domain.PolicyStore            = (*store.PolicyStore)(nil)
	_ domain.FactWriter             = (*store.FactWriter)(nil)
	_ domain.EntityExtractor        = (*ner.ModelBacked)(nil)
	_ domain.EntityExtractor        = ner.NoOp{}
	_ domain.LexicalFilter          = (*lexical.Filter)(nil)
	_ domain.LanguageModelExtractor = (*llm.OpenAIExtractor)(nil)
	_ domain.LanguageModelExtractor = (*llm.MockExtractor)(nil)
	_ domain.ObservabilitySink      = (*observe.Sink)(nil)
	_ handlers.Condenser            = (*service.Condenser)(nil)
	_ handlers.DecayRunner          = (*service.DecayWorker)(nil)
	_ handlers.JobLog               = (*observe.Sink)(nil)
)
