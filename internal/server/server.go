// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects stores, services, handlers
// and middleware, and decides which URL maps to which handler.
//
// WHY SEPARATE FROM main.go?
// Tests build a complete server around an in-memory database and a fake AI
// provider (NewWithDeps) without running main; main.go stays a short list of
// "load config, build server, start".
//
// DEPENDENCY INJECTION FLOW:
//
//	config ──► sqlite.DB ──────────────► repositories ─┐
//	       └─► session store (sqlite|redis) ─► SessionManager ─┤
//	       └─► ai.Client ───────────────────────────────────────┼─► services ─► handlers ─► routes
//	       └─► prometheus.Registry ─► metrics ──────────────────┘
//
// Each layer only receives what it needs: services get repository interfaces,
// handlers get services, nobody but this package sees the concrete stores.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/edulearn/portal/internal/ai"
	"github.com/edulearn/portal/internal/auth"
	"github.com/edulearn/portal/internal/config"
	"github.com/edulearn/portal/internal/handler"
	"github.com/edulearn/portal/internal/janitor"
	"github.com/edulearn/portal/internal/metrics"
	"github.com/edulearn/portal/internal/middleware"
	"github.com/edulearn/portal/internal/repository"
	redisRepo "github.com/edulearn/portal/internal/repository/redis"
	sqliteRepo "github.com/edulearn/portal/internal/repository/sqlite"
	"github.com/edulearn/portal/internal/service"
)

// pinger is anything /healthz should check.
type pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the outside-world dependencies. New builds them from the config;
// tests pass their own to NewWithDeps.
type Deps struct {
	DB *sqliteRepo.DB
	// Sessions defaults to DB.
	Sessions auth.SessionStore
	// Completer defaults to an ai.Client built from cfg.AI.
	Completer ai.Completer
	// Notifier defaults to logging the reset link.
	Notifier service.ResetNotifier
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database (and the Redis client when configured). Both
// are closed in Close, after the HTTP server and the janitor have stopped.
type Server struct {
	router   *chi.Mux
	config   *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	janitor  *janitor.Janitor
	checks   map[string]pinger
	closers  []func() error
}

// New opens the stores named by cfg and builds the server.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	deps := Deps{DB: db}
	closers := []func() error{db.Close}

	if cfg.Session.Backend == config.SessionBackendRedis {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		store, err := redisRepo.New(ctx, redisRepo.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		cancel()
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		deps.Sessions = store
		closers = append([]func() error{store.Close}, closers...)
	}

	s, err := NewWithDeps(cfg, logger, deps)
	if err != nil {
		for _, c := range closers {
			c()
		}
		return nil, err
	}
	s.closers = closers
	return s, nil
}

// NewWithDeps wires the server around already-open dependencies. It does not
// take ownership: Close on the result only stops the janitor.
func NewWithDeps(cfg *config.Config, logger *slog.Logger, deps Deps) (*Server, error) {
	if deps.DB == nil {
		return nil, errors.New("server: database is required")
	}
	if deps.Sessions == nil {
		deps.Sessions = deps.DB
	}
	if deps.Completer == nil {
		deps.Completer = ai.NewClient(context.Background(), ai.Config{
			BaseURL: cfg.AI.BaseURL,
			APIKey:  cfg.AI.APIKey,
			Timeout: cfg.AI.Timeout,
		})
	}
	if deps.Notifier == nil {
		deps.Notifier = &service.LogResetNotifier{PublicURL: cfg.PublicURL, Logger: logger}
	}

	// A private registry instead of prometheus.DefaultRegisterer: several
	// servers (one per test) can coexist in one process.
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		registry: registry,
		metrics:  metrics.New(registry),
		checks:   map[string]pinger{"database": deps.DB},
	}
	if p, ok := deps.Sessions.(pinger); ok && deps.Sessions != auth.SessionStore(deps.DB) {
		s.checks["sessions"] = p
	}

	if err := s.setupRoutes(deps); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes builds the service graph and registers every route.
//
// ROUTE STRUCTURE:
//
//	GET    /healthz                          → database (and redis) ping
//	GET    /metrics                          → Prometheus exposition
//	POST   /setup                            → bootstrap admin + seed data    [rate limited]
//	POST   /auth/register | /auth/login      → create / open a session        [rate limited]
//	POST   /auth/forgot-password | /auth/reset-password                       [rate limited]
//	POST   /auth/logout, GET /auth/me, POST /auth/change-password
//	       /api/subjects, /api/grades, /api/agenda, /api/schedule,
//	       /api/keuzelessen, /api/files, /api/chat, /api/chat-history,
//	       /api/support, /api/bugs, /api/settings, /api/users, /api/pro
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID: every log line and 500 response can be correlated
//  2. RealIP (TRUST_PROXY only): the rate limiter must see the client address,
//     not the proxy. Without a proxy in front the headers are client-controlled,
//     so the limiter keys on the TCP peer instead.
//  3. Logger: request log + HTTP metrics
//  4. Recoverer: a panic becomes a 500 instead of killing the process
//  5. LoadUser: resolves the session cookie once per request
//
// Authorization is NOT middleware: each service method runs the gate itself,
// so the rule sits next to the data it protects.
func (s *Server) setupRoutes(deps Deps) error {
	cfg := s.config
	db := deps.DB

	sessions, err := auth.NewSessionManager(cfg.Session.Secret, deps.Sessions)
	if err != nil {
		return err
	}
	passwords := auth.NewPasswordService(cfg.Session.BcryptCost)

	// === SERVICES ===
	authSvc := service.NewAuthService(db, db, sessions, passwords, deps.Notifier, s.metrics, s.logger)
	setupSvc := service.NewSetupService(db, db, db, sessions, passwords, cfg.Setup.Secret, cfg.Setup.AdminPassword, s.logger)
	schoolSvc := service.NewSchoolService(db, db, db, db, s.logger)
	materialSvc := service.NewMaterialService(db, s.logger)
	historySvc := service.NewChatHistoryService(db, s.logger)
	chatSvc := service.NewChatService(deps.Completer, db, db, cfg.AI.Models, s.metrics, s.logger)
	feedbackSvc := service.NewFeedbackService(db, db, s.logger)
	accountSvc := service.NewAccountService(db, db, sessions, s.logger)
	scheduleSvc := service.NewScheduleService(db, s.logger)
	electiveSvc := service.NewElectiveService(db, s.logger)
	proSvc := service.NewProService(db, s.logger)

	// === HANDLERS ===
	secure := cfg.IsProduction()
	authH := handler.NewAuthHandler(authSvc, secure, s.logger)
	setupH := handler.NewSetupHandler(setupSvc, s.logger)
	schoolH := handler.NewSchoolHandler(schoolSvc, s.logger)
	materialH := handler.NewMaterialHandler(materialSvc, s.logger)
	chatH := handler.NewChatHandler(chatSvc, historySvc, s.logger)
	feedbackH := handler.NewFeedbackHandler(feedbackSvc, s.logger)
	accountH := handler.NewAccountHandler(accountSvc, s.logger)
	timetableH := handler.NewTimetableHandler(scheduleSvc, electiveSvc, s.logger)
	proH := handler.NewProHandler(proSvc, s.logger)

	// === JANITOR ===
	// Only SQLite needs sweeping; Redis expires session keys on its own.
	var sweeper repository.ExpiredSessionSweeper
	if sw, ok := deps.Sessions.(repository.ExpiredSessionSweeper); ok {
		sweeper = sw
	}
	s.janitor = janitor.New(sweeper, db, s.metrics, s.logger)

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, s.metrics, s.logger)

	// === Global Middleware ===
	r := s.router
	r.Use(chimiddleware.RequestID)
	if cfg.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.Logger(s.logger, s.metrics))
	r.Use(chimiddleware.Recoverer)
	r.Use(auth.LoadUser(authSvc))

	// === Operations ===
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	// === Setup & Auth ===
	r.With(limiter.Middleware).Post("/setup", setupH.HandleSetup)

	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(limiter.Middleware)
			r.Post("/register", authH.HandleRegister)
			r.Post("/login", authH.HandleLogin)
			r.Post("/forgot-password", authH.HandleForgotPassword)
			r.Post("/reset-password", authH.HandleResetPassword)
		})
		r.Post("/logout", authH.HandleLogout)
		r.Get("/me", authH.HandleMe)
		r.Post("/change-password", authH.HandleChangePassword)
	})

	// === API ===
	r.Route("/api", func(r chi.Router) {
		r.Get("/subjects", schoolH.HandleListSubjects)
		r.Post("/subjects", schoolH.HandleCreateSubject)
		r.Put("/subjects/{id}", schoolH.HandleUpdateSubject)
		r.Delete("/subjects/{id}", schoolH.HandleDeleteSubject)

		r.Get("/grades", schoolH.HandleListGrades)
		r.Post("/grades", schoolH.HandleCreateGrade)
		r.Delete("/grades/{id}", schoolH.HandleDeleteGrade)

		r.Get("/agenda", schoolH.HandleListAgenda)
		r.Post("/agenda", schoolH.HandleCreateAgendaItem)
		r.Delete("/agenda/{id}", schoolH.HandleDeleteAgendaItem)

		r.Get("/schedule", timetableH.HandleListSchedule)
		r.Post("/schedule", timetableH.HandleCreateScheduleEntry)
		r.Put("/schedule/{id}", timetableH.HandleUpdateScheduleEntry)
		r.Delete("/schedule/{id}", timetableH.HandleDeleteScheduleEntry)

		r.Get("/keuzelessen", timetableH.HandleListElectives)
		r.Post("/keuzelessen", timetableH.HandleCreateElective)
		r.Post("/keuzelessen/{id}/toggle", timetableH.HandleToggleEnrollment)
		r.Put("/keuzelessen/{id}", timetableH.HandleUpdateElective)
		r.Delete("/keuzelessen/{id}", timetableH.HandleDeleteElective)

		r.Get("/files", materialH.HandleList)
		r.Get("/files/{id}", materialH.HandleGet)
		r.Post("/files", materialH.HandleCreate)
		r.Put("/files/{id}", materialH.HandleUpdate)
		r.Delete("/files/{id}", materialH.HandleDelete)

		r.Post("/chat", chatH.HandleAsk)
		r.Get("/chat/models", chatH.HandleModels)

		r.Get("/chat-history", chatH.HandleListHistories)
		r.Get("/chat-history/{id}", chatH.HandleGetHistory)
		r.Post("/chat-history", chatH.HandleSaveHistory)
		r.Delete("/chat-history/{id}", chatH.HandleDeleteHistory)

		r.Get("/support", feedbackH.HandleListSupport)
		r.Post("/support", feedbackH.HandleSendSupport)
		r.Patch("/support/{id}", feedbackH.HandleUpdateSupport)

		r.Get("/bugs", feedbackH.HandleListBugs)
		r.Post("/bugs", feedbackH.HandleReportBug)
		r.Patch("/bugs/{id}", feedbackH.HandleUpdateBug)
		r.Delete("/bugs/{id}", feedbackH.HandleDeleteBug)

		r.Get("/settings", accountH.HandleGetSettings)
		r.Post("/settings", accountH.HandleSaveSetting)
		r.Post("/settings/email", accountH.HandleSetEmail)

		r.Get("/users", accountH.HandleListUsers)
		r.Post("/users/{id}/revoke-sessions", accountH.HandleRevokeSessions)

		r.Post("/pro/request", proH.HandleRequest)
		r.Get("/pro/requests", proH.HandleList)
		r.Patch("/pro/requests/{id}", proH.HandleDecide)
	})

	return nil
}

// handleHealth pings every store with a short deadline.
// 200 {"status":"ok"} or 503 {"status":"unavailable","failed":[...]}.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	var failed []string
	for name, p := range s.checks {
		if err := p.Ping(ctx); err != nil {
			s.logger.Error("health check failed",
				slog.String("check", name),
				slog.String("error", err.Error()),
			)
			failed = append(failed, name)
		}
	}

	if len(failed) > 0 {
		sort.Strings(failed)
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, map[string]any{"status": "unavailable", "failed": failed})
		return
	}
	render.JSON(w, r, map[string]string{"status": "ok"})
}

// Close stops the janitor and releases the stores New opened.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.janitor.Stop(ctx)

	var errs []error
	for _, c := range s.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Start starts the janitor and the HTTP server, then blocks until SIGINT or
// SIGTERM and shuts down gracefully.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Stop the janitor and close the stores (Close, deferred)
func (s *Server) Start() error {
	defer s.Close()

	if err := s.janitor.Start(s.config.JanitorSchedule); err != nil {
		return err
	}

	// WriteTimeout is generous because the chat proxy may wait for several
	// model fallbacks before it answers.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
			slog.String("sessionBackend", s.config.Session.Backend),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
