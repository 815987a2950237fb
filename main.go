package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"codeGoalsAPI/handlers"
	"codeGoalsAPI/internal/auth"
	"codeGoalsAPI/internal/config"
	"codeGoalsAPI/internal/localdb"
	"codeGoalsAPI/internal/remote"
	"codeGoalsAPI/internal/resolver"
	"codeGoalsAPI/internal/workers"
	"codeGoalsAPI/middleware"
	"codeGoalsAPI/services"

	_ "net/http/pprof"
)

var (
	cfg             *config.Config
	db              *sql.DB
	remoteStore     remote.Store
	directory       auth.Directory
	targetService   *services.TargetService
	syncService     *services.SyncService
	ratingService   *services.RatingService
	friendService   *services.FriendService
	activityService *services.ActivityService
	metaService     *services.CodeforcesService
	accountService  *services.AccountService
)

func init() {
	cfg = config.Load()

	clerkSecretKey := os.Getenv("CLERK_SECRET_KEY")
	if clerkSecretKey == "" {
		log.Fatal("CLERK_SECRET_KEY environment variable is not set")
	}
	clerk.SetKey(clerkSecretKey)
	log.Println("Clerk initialized successfully")

	var err error
	db, err = localdb.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to open local store:", err)
	}
	log.Printf("Local store ready (%s)", cfg.Database.Driver)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	app, err := auth.NewFirebaseApp(ctx, cfg.Firebase.CredentialsFile)
	if err != nil {
		// The engine still works against an in-process store; sync then only
		// converges devices that talk to this server instance.
		log.Printf("Warning: could not initialize Firebase (%v), using in-memory remote store", err)
		remoteStore = remote.NewMemoryStore()
	} else {
		client, err := app.Firestore(ctx)
		if err != nil {
			log.Fatal("Failed to create Firestore client:", err)
		}
		remoteStore = remote.NewFirestoreStore(client)

		if dir, err := auth.NewFirebaseDirectory(ctx, app); err != nil {
			log.Printf("Warning: admin directory unavailable: %v", err)
		} else {
			directory = dir
		}
		log.Println("Firestore remote store initialized successfully")
	}

	chain := resolver.NewChain(
		resolver.CachedUID{},
		resolver.ProfileDoc{Store: remoteStore},
		resolver.AccountQuery{Store: remoteStore},
		resolver.AdminLookup{Directory: directory},
	)

	targetService = services.NewTargetService(db)
	syncService = services.NewSyncService(targetService, remoteStore, cfg.Sync.PushHistory)
	ratingService = services.NewRatingService(db, remoteStore)
	friendService = services.NewFriendService(db, remoteStore, chain)
	activityService = services.NewActivityService(db, remoteStore)
	metaService = services.NewCodeforcesService()
	accountService = services.NewAccountService(db)

	middleware.InitPrometheus()
	syncService.SetPhaseObserver(func(phase services.SyncPhase, err error) {
		middleware.ObserveSyncPhase(string(phase), err)
	})
}

func main() {
	defer func() {
		log.Println("Closing local store...")
		db.Close()
	}()

	targetHandler := handlers.NewTargetHandler(targetService, ratingService, metaService, accountService)
	friendHandler := handlers.NewFriendHandler(friendService, accountService)
	syncHandler := handlers.NewSyncHandler(syncService, accountService)
	dashboardHandler := handlers.NewDashboardHandler(ratingService, activityService, targetService, accountService)

	r := mux.NewRouter()

	go middleware.CleanupVisitors()

	r.Use(middleware.MonitorMiddleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(promhttp.Handler()))
	r.PathPrefix("/debug/pprof/").Handler(middleware.PprofSecurityMiddleware(http.DefaultServeMux))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "local store connection failed"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "codegoals-api"}`))
	}).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware)
	// After auth, so the limiter sees the account id and keys by it.
	protected.Use(middleware.RateLimitMiddleware)

	protected.HandleFunc("/account", dashboardHandler.RegisterAccount).Methods("POST")

	protected.HandleFunc("/targets", targetHandler.ListTargets).Methods("GET")
	protected.HandleFunc("/targets", targetHandler.CreateTarget).Methods("POST")
	protected.HandleFunc("/targets/{id}/status", targetHandler.UpdateStatus).Methods("PUT")
	protected.HandleFunc("/targets/{id}", targetHandler.ArchiveTarget).Methods("DELETE")

	protected.HandleFunc("/friends", friendHandler.ListFriends).Methods("GET")
	protected.HandleFunc("/friends", friendHandler.AddFriend).Methods("POST")
	protected.HandleFunc("/friends/{email}", friendHandler.RemoveFriend).Methods("DELETE")
	protected.HandleFunc("/friends/{email}/stats", friendHandler.GetFriendStats).Methods("GET")

	protected.HandleFunc("/sync", syncHandler.TriggerSync).Methods("POST")

	protected.HandleFunc("/dashboard", dashboardHandler.GetDashboard).Methods("GET")
	protected.HandleFunc("/activity", dashboardHandler.RecordActivity).Methods("POST")

	// Background sync runs only when a device account is configured (the
	// hosted deployment syncs per request instead).
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if cfg.Account.UID != "" && cfg.Account.Email != "" {
		provider := auth.StaticProvider{UID: cfg.Account.UID, Email: cfg.Account.Email}
		workers.StartSyncWorker(workerCtx, syncService, provider, cfg.Sync.Interval)
	}

	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Pprof-Secret"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorilllaHandlers.AllowCredentials(),
	)

	server := http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server:", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	sig := <-sigChan
	log.Println("Got signal:", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server shutdown complete")
}
