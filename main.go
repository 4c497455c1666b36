package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk"
	clerk "github.com/clerk/clerk-sdk-go/v2"
	"github.com/google/uuid"
	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"venuePresenceAPI/handlers"
	"venuePresenceAPI/internal/common/clock"
	"venuePresenceAPI/internal/config"
	"venuePresenceAPI/internal/database"
	"venuePresenceAPI/internal/logger"
	"venuePresenceAPI/internal/workers"
	"venuePresenceAPI/middleware"
	"venuePresenceAPI/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// The logger is configured from cfg, so fall back to a bare one.
		zap.Must(zap.NewProduction()).Fatal("Failed to load config", zap.Error(err))
	}

	if err := logger.Init(logger.ParseLevel(cfg.LogLevel), zap.String("service", "venue-presence-api")); err != nil {
		panic(err)
	}
	log := logger.Log
	defer log.Sync()

	clerk.SetKey(cfg.ClerkSecretKey)
	log.Info("Clerk initialized successfully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	dbPool, err := database.Connect(ctx, cfg.DatabaseURL, log)
	cancel()
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		log.Info("Closing database connection pool...")
		dbPool.Close()
	}()

	if cfg.RunMigrations {
		if err := database.RunMigrations(cfg.DatabaseURL, log); err != nil {
			log.Fatal("Failed to run migrations", zap.Error(err))
		}
	}

	middleware.InitPrometheus()

	clk := clock.New()
	store := newCacheStore(cfg, log)

	events := services.NoopPresenceEvents()
	if cfg.NATSURL != "" {
		nc, err := services.ConnectNATS(cfg.NATSURL, log)
		if err != nil {
			log.Warn("NATS unavailable, check-in events disabled", zap.Error(err))
		} else {
			defer nc.Drain()
			events = services.NewNATSPresenceEvents(nc)
		}
	}

	qrSecret := cfg.QRSigningSecret
	if qrSecret == "" {
		qrSecret = uuid.NewString()
		log.Warn("QR_SIGNING_SECRET not set, check-in codes will not survive a restart")
	}

	venueService := services.NewVenueService(dbPool)
	checkInLedger := services.NewCheckInLedger(dbPool, clk)
	creditLedger := services.NewCreditLedger(dbPool, clk, log)
	presenceCache := services.NewPresenceCache(store, clk, log)
	presenceManager := services.NewPresenceManager(venueService, checkInLedger, presenceCache, events, clk, log)
	qrService := services.NewVenueQRService(venueService, presenceManager, qrSecret, clk, log)
	sessionManager := services.NewSessionManager(creditLedger, clk, log)
	defer sessionManager.Shutdown()
	userService := services.NewUserService(dbPool)

	paddleOpts := []paddle.Option{}
	if cfg.Paddle.Sandbox {
		paddleOpts = append(paddleOpts, paddle.WithBaseURL(paddle.SandboxBaseURL))
	}
	paddleClient, err := paddle.New(cfg.Paddle.APIKey, paddleOpts...)
	if err != nil {
		log.Fatal("Failed to create Paddle client", zap.Error(err))
	}
	paddleService := services.NewPaddleService(paddleClient, cfg.Paddle.CreditPacks, creditLedger, cfg.Paddle.Sandbox, log)

	// Initialize handlers
	venueHandler := handlers.NewVenueHandler(presenceManager, qrService)
	checkInHandler := handlers.NewCheckInHandler(presenceManager, qrService)
	creditHandler := handlers.NewCreditHandler(creditLedger)
	paddleHandler := handlers.NewPaddleHandler(paddleService, paddle.NewWebhookVerifier(cfg.Paddle.WebhookSecret))
	sessionHandler := handlers.NewSessionHandler(sessionManager)
	userHandler := handlers.NewUserHandler(userService)

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	writeLimiter := middleware.NewRateLimiter(rate.Limit(2), 10)
	go writeLimiter.Cleanup(bgCtx)
	go workers.NewCheckInSweeper(dbPool, clk, log).Run(bgCtx, workers.SweepInterval)

	r := mux.NewRouter()
	r.Use(middleware.MonitorMiddleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(cfg.Metrics.User, cfg.Metrics.Password)(promhttp.Handler()))
	r.HandleFunc("/health", healthHandler(dbPool)).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/webhooks/paddle", paddleHandler.PaddleWebhookHandler).Methods("POST")
	if cfg.ClerkWebhookSecret != "" {
		signature, err := handlers.NewClerkSignature(cfg.ClerkWebhookSecret, nil)
		if err != nil {
			log.Fatal("Invalid CLERK_WEBHOOK_SECRET", zap.Error(err))
		}
		webhookHandler := handlers.NewWebhookHandler(userService, signature)
		api.HandleFunc("/webhooks/clerk", webhookHandler.HandleClerkWebhook).Methods("POST")
	} else {
		log.Warn("CLERK_WEBHOOK_SECRET not set, user sync webhook disabled")
	}

	// -------------------------------------------------------------------------
	// PROTECTED ROUTES (REQUIRE AUTH HEADER)
	// -------------------------------------------------------------------------
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.ClerkAuthMiddleware)

	protected.HandleFunc("/venues", venueHandler.GetAllVenues).Methods("GET")
	protected.HandleFunc("/venues/{venueID}/guests", venueHandler.GetVenueGuests).Methods("GET")
	protected.HandleFunc("/venues/{venueID}/qr", venueHandler.GetCheckInCode).Methods("GET")

	protected.HandleFunc("/checkins/active", checkInHandler.GetActiveCheckIn).Methods("GET")
	protected.Handle("/checkins", writeLimiter.Middleware(http.HandlerFunc(checkInHandler.CheckIn))).Methods("POST")
	protected.Handle("/checkins/qr", writeLimiter.Middleware(http.HandlerFunc(checkInHandler.CheckInWithCode))).Methods("POST")

	protected.HandleFunc("/credits/balance", creditHandler.GetBalance).Methods("GET")
	protected.HandleFunc("/credits/entries", creditHandler.GetEntries).Methods("GET")
	protected.HandleFunc("/credits/packs", paddleHandler.GetPacks).Methods("GET")
	protected.Handle("/credits/checkout", writeLimiter.Middleware(http.HandlerFunc(paddleHandler.CreateCheckout))).Methods("POST")

	protected.HandleFunc("/sessions", sessionHandler.OpenSession).Methods("POST")
	protected.HandleFunc("/sessions/{conversationID}", sessionHandler.GetSession).Methods("GET")
	protected.HandleFunc("/sessions/{conversationID}", sessionHandler.CloseSession).Methods("DELETE")
	protected.Handle("/sessions/{conversationID}/extend", writeLimiter.Middleware(http.HandlerFunc(sessionHandler.ExtendSession))).Methods("POST")
	protected.HandleFunc("/sessions/{conversationID}/ws", sessionHandler.SessionFeed).Methods("GET")

	protected.HandleFunc("/users/me", userHandler.GetMe).Methods("GET")

	// CORS configuration
	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "Paddle-Signature", "svix-id", "svix-timestamp", "svix-signature"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
	)

	port := ":" + cfg.Port

	// No WriteTimeout: the session feed holds its connection open.
	server := http.Server{
		Addr:              port,
		Handler:           corsHandler(r),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info("Starting server", zap.String("port", port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Error starting server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	log.Info("Got signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", zap.Error(err))
	}

	log.Info("Server shutdown complete")
}

// newCacheStore prefers Redis so the catalog snapshot outlives restarts and
// is shared across instances, and falls back to process memory.
func newCacheStore(cfg *config.Config, log *zap.Logger) services.KeyValueStore {
	if cfg.RedisURL == "" {
		log.Info("REDIS_URL not set, using in-memory presence cache")
		return services.NewMemoryStore()
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Warn("Invalid REDIS_URL, using in-memory presence cache", zap.Error(err))
		return services.NewMemoryStore()
	}

	store, err := services.NewRedisStore(redis.NewClient(opts), "presence:")
	if err != nil {
		log.Warn("Redis unavailable, using in-memory presence cache", zap.Error(err))
		return services.NewMemoryStore()
	}

	log.Info("Presence cache backed by Redis")
	return store
}

func healthHandler(dbPool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := dbPool.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "database connection failed"}`))
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "venue-presence-api"}`))
	}
}
