package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wattWiseAPI/handlers"
	"wattWiseAPI/internal/catalog"
	"wattWiseAPI/internal/profile"
	"wattWiseAPI/internal/push"
	"wattWiseAPI/internal/responsestore"
	"wattWiseAPI/internal/types/challenge"
	"wattWiseAPI/middleware"
	"wattWiseAPI/services"

	_ "net/http/pprof"
)

var (
	dbPool            *pgxpool.Pool
	store             *responsestore.Store
	actionCatalog     *catalog.Catalog
	week              *challenge.Week
	profileClient     *profile.Client
	schedulerService  *services.SchedulerService
	reconcilerService *services.ReconcilerService
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	clerkSecretKey := os.Getenv("CLERK_SECRET_KEY")
	if clerkSecretKey == "" {
		log.Fatal("CLERK_SECRET_KEY environment variable is not set")
	}
	clerk.SetKey(clerkSecretKey)
	log.Println("Clerk initialized successfully")

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		log.Fatal("Failed to parse database URL:", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	dbPool, err = pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Fatal("Failed to create connection pool:", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Fatal("Failed to ping profile database:", err)
	}
	log.Println("Successfully connected to profile database")

	storePath := os.Getenv("RESPONSE_STORE_PATH")
	if storePath == "" {
		storePath = "./wattwise.db"
	}
	store, err = responsestore.NewStore(storePath)
	if err != nil {
		log.Fatal("Failed to open response store:", err)
	}

	actionCatalog, err = catalog.Load(os.Getenv("ACTION_CATALOG_PATH"))
	if err != nil {
		log.Fatal("Failed to load action catalog:", err)
	}

	// The rolling week is recomputed on every boot and its anchor
	// persisted so challenge ids stay stable for the whole session.
	week = actionCatalog.BuildWeek(time.Now())
	if err := store.SetWeekStart(week.Start); err != nil {
		log.Fatal("Failed to persist week start:", err)
	}
	log.Printf("Active challenge week starts %s", week.Start.Format("2006-01-02"))

	pointsCap := 0 // no per-challenge cap unless configured
	if raw := os.Getenv("CHALLENGE_POINTS_CAP"); raw != "" {
		pointsCap, err = strconv.Atoi(raw)
		if err != nil {
			log.Fatal("CHALLENGE_POINTS_CAP must be an integer:", err)
		}
	}

	profileClient = profile.NewClient(dbPool)
	schedulerService = services.NewSchedulerService(store, week)
	reconcilerService = services.NewReconcilerService(store, actionCatalog, week, schedulerService, profileClient, pointsCap)

	fcmService, err := push.NewFCMService("./serviceAccountKey.json")
	if err != nil {
		log.Printf("Warning: Could not initialize FCM: %v", err)
	} else {
		schedulerService.SetPushProvider(fcmService)
		log.Println("FCM Push Provider initialized successfully")
	}

	middleware.InitPrometheus()
	services.InitSchedulerMetrics()
}

func main() {
	defer func() {
		log.Println("Closing database connection pool...")
		dbPool.Close()
		store.Close()
	}()

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	schedulerService.StartSweeper(sweepCtx)

	challengeHandler := handlers.NewChallengeHandler(actionCatalog, week)
	responseHandler := handlers.NewResponseHandler(reconcilerService, schedulerService)
	notificationHandler := handlers.NewNotificationHandler(schedulerService, store)
	profileHandler := handlers.NewProfileHandler(reconcilerService)
	webhookHandler := handlers.NewWebhookHandler(profileClient, schedulerService)

	r := mux.NewRouter()

	go middleware.CleanupVisitors()

	r.Use(middleware.RateLimitMiddleware)
	r.Use(middleware.MonitorMiddleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(promhttp.Handler()))
	r.PathPrefix("/debug/pprof/").Handler(middleware.PprofSecurityMiddleware(http.DefaultServeMux))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := dbPool.Ping(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "profile database connection failed"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "wattWise-api"}`))
	}).Methods("GET")

	r.HandleFunc("/webhooks/clerk", webhookHandler.HandleClerkWebhook).Methods("POST")

	// -------------------------------------------------------------------------
	// API V1 SUBROUTER
	// -------------------------------------------------------------------------
	api := r.PathPrefix("/api/v1").Subrouter()

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.ClerkAuthMiddleware)

	protected.HandleFunc("/challenges", challengeHandler.GetWeek).Methods("GET")
	protected.HandleFunc("/challenges/today", challengeHandler.GetToday).Methods("GET")
	protected.HandleFunc("/actions", challengeHandler.GetActions).Methods("GET")

	protected.HandleFunc("/challenges/{id}/participation", responseHandler.PostParticipation).Methods("POST")
	protected.HandleFunc("/challenges/{id}/complete", responseHandler.PostComplete).Methods("POST")

	protected.HandleFunc("/notifications", notificationHandler.GetNotifications).Methods("GET")
	protected.HandleFunc("/notifications/unread-count", notificationHandler.GetUnreadCount).Methods("GET")
	protected.HandleFunc("/notifications/{id}/read", notificationHandler.MarkAsRead).Methods("PUT")
	protected.HandleFunc("/notifications/read-all", notificationHandler.MarkAllAsRead).Methods("PUT")
	protected.HandleFunc("/notifications/register-device", notificationHandler.RegisterDevice).Methods("POST")

	protected.HandleFunc("/profile", profileHandler.GetProfile).Methods("GET")

	// CORS configuration
	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Pprof-Secret"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorilllaHandlers.AllowCredentials(),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3333"
	}
	port = ":" + port

	server := http.Server{
		Addr:         port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server:", err)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	sig := <-sigChan
	log.Println("Got signal:", sig)
	stopSweeper()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server shutdown complete")
}
