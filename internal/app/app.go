// Package app wires the guildhall services together and runs the HTTP servers.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/bissquit/guildhall/api/openapi"
	"github.com/bissquit/guildhall/internal/actions"
	actionspostgres "github.com/bissquit/guildhall/internal/actions/postgres"
	"github.com/bissquit/guildhall/internal/authz"
	"github.com/bissquit/guildhall/internal/config"
	"github.com/bissquit/guildhall/internal/goals"
	goalspostgres "github.com/bissquit/guildhall/internal/goals/postgres"
	"github.com/bissquit/guildhall/internal/identity"
	"github.com/bissquit/guildhall/internal/identity/jwt"
	identitypostgres "github.com/bissquit/guildhall/internal/identity/postgres"
	"github.com/bissquit/guildhall/internal/members"
	memberspostgres "github.com/bissquit/guildhall/internal/members/postgres"
	"github.com/bissquit/guildhall/internal/notifications"
	"github.com/bissquit/guildhall/internal/notifications/discord"
	"github.com/bissquit/guildhall/internal/pkg/ctxlog"
	"github.com/bissquit/guildhall/internal/pkg/httputil"
	"github.com/bissquit/guildhall/internal/pkg/metrics"
	"github.com/bissquit/guildhall/internal/pkg/postgres"
	"github.com/bissquit/guildhall/internal/proofs"
	"github.com/bissquit/guildhall/internal/proofs/blob"
	"github.com/bissquit/guildhall/internal/sales"
	"github.com/bissquit/guildhall/internal/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// App owns the servers and the database pool.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	server        *http.Server
	metricsServer *http.Server
	metricsCancel context.CancelFunc
}

// New connects to the database and builds the router from cfg.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)
	slog.SetDefault(logger)

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	metricsCtx, metricsCancel := context.WithCancel(context.Background())

	app := &App{
		config:        cfg,
		logger:        logger,
		db:            db,
		metricsCancel: metricsCancel,
	}

	go metrics.CollectDBPool(metricsCtx, db, 15*time.Second)

	router, err := app.setupRouter()
	if err != nil {
		db.Close()
		metricsCancel()
		return nil, fmt.Errorf("setup router: %w", err)
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Run serves the API until Shutdown is called. The metrics server runs in
// the background.
func (a *App) Run() error {
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
		"version", version.Version,
	)

	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown stops both servers, waits for in-flight requests and closes the
// database pool.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")
	a.metricsCancel()

	var g errgroup.Group
	g.Go(func() error {
		if err := a.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown metrics server: %w", err)
		}
		return nil
	})
	err := g.Wait()

	a.db.Close()
	return err
}

// Router returns the API handler.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

func (a *App) setupRouter() (*chi.Mux, error) {
	r := chi.NewRouter()

	// Outermost, so durations include every other middleware.
	r.Use(httputil.MetricsMiddleware)

	// Preflight requests end here.
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)
	r.Get("/api/openapi.yaml", openAPIHandler)
	r.Get("/docs", docsHandler)

	policy, err := authz.PolicyFromConfig(a.config.Authz.Capabilities, a.config.Authz.Reserved)
	if err != nil {
		return nil, fmt.Errorf("load authorization policy: %w", err)
	}
	gate := authz.NewGate(policy)

	notifier := a.setupNotifier()

	proofGateway, err := a.setupProofs()
	if err != nil {
		return nil, err
	}

	jwtAuth, err := jwt.NewAuthenticator(jwt.Config{
		SecretKey:     a.config.JWT.SecretKey,
		Issuer:        a.config.JWT.Issuer,
		TokenDuration: a.config.JWT.TokenDuration,
	})
	if err != nil {
		return nil, fmt.Errorf("create authenticator: %w", err)
	}
	identityService := identity.NewService(identitypostgres.NewRepository(a.db), jwtAuth)
	identityHandler := identity.NewHandler(identityService)

	membersService := members.NewService(memberspostgres.NewRepository(a.db), gate, notifier)
	membersHandler := members.NewHandler(membersService)

	actionsService := actions.NewService(actionspostgres.NewRepository(a.db), membersService, gate, notifier)
	actionsHandler := actions.NewHandler(actionsService)

	goalsService := goals.NewService(goalspostgres.NewRepository(a.db), gate, proofGateway)
	goalsHandler := goals.NewHandler(goalsService)

	salesHandler := sales.NewHandler(sales.NewService(notifier, membersService, gate))
	notificationsHandler := notifications.NewHandler(notifier, gate)

	r.Route("/api/v1", func(r chi.Router) {
		identityHandler.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(httputil.AuthMiddleware(identityService))

			identityHandler.RegisterProtectedRoutes(r)
			membersHandler.RegisterRoutes(r)
			actionsHandler.RegisterRoutes(r)
			goalsHandler.RegisterRoutes(r)
			salesHandler.RegisterRoutes(r)
			notificationsHandler.RegisterRoutes(r)
		})
	})

	return r, nil
}

func (a *App) setupNotifier() *notifications.Notifier {
	cfg := a.config.Notifications

	sender := discord.NewSender(discord.Config{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		Burst:     cfg.Burst,
	})
	renderer := notifications.NewRenderer(notifications.RendererConfig{
		Username:  cfg.Username,
		AvatarURL: cfg.AvatarURL,
		Footer:    cfg.Footer,
	})
	dispatcher := notifications.NewDispatcher(sender, renderer, notifications.DispatcherConfig{
		Timeout:     cfg.Timeout,
		MaxParallel: cfg.MaxParallel,
	})

	if len(cfg.GeneralWebhooks) == 0 {
		slog.Warn("no general webhooks configured: general channel notifications will be skipped")
	}
	slog.Info("notifications configured",
		"general_webhooks", len(cfg.GeneralWebhooks),
		"max_parallel", cfg.MaxParallel,
		"rate_limit", cfg.RateLimit,
	)

	return notifications.NewNotifier(dispatcher, cfg.GeneralWebhooks)
}

func (a *App) setupProofs() (*proofs.Gateway, error) {
	cfg := a.config.Blob
	gatewayConfig := proofs.Config{
		TTL:            cfg.ProofTTL,
		MaxUploadBytes: cfg.MaxUploadBytes,
		AllowedTypes:   cfg.AllowedTypes,
	}

	if cfg.Token == "" {
		slog.Warn("blob token is not set: proof uploads are disabled")
		return proofs.NewGateway(nil, gatewayConfig), nil
	}

	client, err := blob.New(blob.Config{
		BaseURL: cfg.BaseURL,
		Token:   cfg.Token,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create blob client: %w", err)
	}
	return proofs.NewGateway(client, gatewayConfig), nil
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, version.Get())
}

func openAPIHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/x-yaml")
	_, _ = w.Write(openapi.Spec)
}

const docsPage = `<!DOCTYPE html>
<html>
<head>
  <title>Guildhall API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({url: "/api/openapi.yaml", dom_id: "#swagger-ui"});
  </script>
</body>
</html>`

func docsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(docsPage))
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
