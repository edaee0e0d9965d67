package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/NighHunter/multi-chat-backend/internal/chat"
	"github.com/NighHunter/multi-chat-backend/internal/classroom"
	"github.com/NighHunter/multi-chat-backend/internal/config"
	"github.com/NighHunter/multi-chat-backend/internal/db"
	"github.com/NighHunter/multi-chat-backend/internal/events"
	"github.com/NighHunter/multi-chat-backend/internal/health"
	"github.com/NighHunter/multi-chat-backend/internal/logger"
	"github.com/NighHunter/multi-chat-backend/internal/metrics"
	"github.com/NighHunter/multi-chat-backend/internal/middleware"
	"github.com/NighHunter/multi-chat-backend/internal/upload"
	"github.com/NighHunter/multi-chat-backend/internal/user"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

type App struct {
	config        *config.Config
	router        chi.Router
	server        *http.Server
	logger        *slog.Logger
	meterProvider *sdkmetric.MeterProvider
	producer      *events.Producer
}

func New() *App {
	slogLogger := logger.NewWithServiceContext(ServiceName, Version)

	// Set as default logger so slog.Info() uses JSON format
	slog.SetDefault(slogLogger)

	slogLogger.Info("initializing application")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	slogLogger.Info("config loaded", "env", cfg.Env)

	app := &App{
		config: cfg,
		router: chi.NewRouter(),
		logger: slogLogger,
	}

	ctx := context.Background()

	meterProvider, err := metrics.InitMeterProvider(ctx, ServiceName, Version, slogLogger)
	if err != nil {
		slogLogger.Warn("failed to initialize OTel metrics", "error", err)
	}
	app.meterProvider = meterProvider

	m, err := metrics.New(otel.Meter(ServiceName))
	if err != nil {
		slogLogger.Warn("failed to create metric instruments", "error", err)
		m = metrics.NewMock()
	}

	database := db.New(cfg.Database)

	if err := db.RunMigrations(ctx, database,
		(*user.User)(nil),
		(*classroom.Class)(nil),
		(*classroom.ClassMember)(nil),
		(*chat.Message)(nil),
	); err != nil {
		log.Fatal("failed to run migrations:", err)
	}

	blobStore, err := upload.NewStore(cfg.Upload.Dir, cfg.Upload.URLPrefix)
	if err != nil {
		log.Fatal("failed to initialize upload store:", err)
	}

	// NATS producer setup (optional - message events are best effort)
	var producer *events.Producer
	if cfg.NATS.URL != "" {
		producer, err = events.NewProducer(cfg.NATS.URL, cfg.NATS.Subject, slogLogger)
		if err != nil {
			slogLogger.Warn("failed to initialize NATS producer", "error", err)
			producer = nil
		} else {
			slogLogger.Info("NATS producer initialized successfully")
		}
	}
	app.producer = producer

	// Apply CORS middleware globally
	app.router.Use(middleware.CORS(cfg.Server.CORSOrigins))

	// Health endpoints
	healthHandler := health.NewHandler()
	healthHandler.RegisterRoutes(app.router)

	// Repositories. The chat repository doubles as the message cascade
	// hook for class removal.
	userRepo := user.NewRepository(database)
	chatRepo := chat.NewRepository(database)
	classRepo := classroom.NewRepository(database, chatRepo)

	// Services
	classService := classroom.NewService(classRepo, userRepo)
	userService := user.NewService(userRepo, classService)
	var chatProducer chat.Producer
	if producer != nil {
		chatProducer = producer
	}
	chatService := chat.NewService(chatRepo, classRepo, userRepo, chatProducer, slogLogger)

	// Handlers
	userHandler := user.NewHandler(userService, blobStore, slogLogger, m)
	userHandler.RegisterRoutes(app.router)

	classHandler := classroom.NewHandler(classService, slogLogger, m)
	classHandler.RegisterRoutes(app.router)

	chatHandler := chat.NewHandler(chatService, slogLogger, m)
	chatHandler.RegisterRoutes(app.router)

	uploadHandler := upload.NewHandler(blobStore, slogLogger, m)
	uploadHandler.RegisterRoutes(app.router)

	// Serve stored blobs read-only at the upload URL prefix
	fileServer := http.StripPrefix(blobStore.URLPrefix()+"/", http.FileServer(http.Dir(blobStore.Dir())))
	app.router.Get(blobStore.URLPrefix()+"/*", func(w http.ResponseWriter, r *http.Request) {
		fileServer.ServeHTTP(w, r)
	})

	slogLogger.Info("application initialized successfully")

	return app
}

func (a *App) Run() error {
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%s", a.config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  time.Duration(a.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(a.config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(a.config.Server.IdleTimeout) * time.Second,
	}

	a.logger.Info("server starting", "port", a.config.Server.Port)
	return a.server.ListenAndServe()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down server")

	if a.producer != nil {
		a.producer.Close()
	}
	if err := metrics.Shutdown(ctx, a.meterProvider, a.logger); err != nil {
		a.logger.Warn("failed to shutdown metrics", "error", err)
	}

	return a.server.Shutdown(ctx)
}
