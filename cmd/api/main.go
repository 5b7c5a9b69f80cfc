package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"microlend/internal/assist"
	"microlend/internal/auth"
	"microlend/internal/docgen"
	"microlend/internal/handler"
	"microlend/internal/lending"
	"microlend/internal/middleware"
	"microlend/internal/realtime"
	"microlend/internal/repository/postgres"
	"microlend/internal/storage"
	"microlend/pkg/cache"
	"microlend/pkg/config"
	"microlend/pkg/currency"
	"microlend/pkg/logger"
	"microlend/pkg/mailer"
	"microlend/pkg/validator"
)

// overdueSweepInterval is how often loans past their due date get
// flagged in the background.
const overdueSweepInterval = time.Hour

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New("microlend-api")

	if err := cfg.ValidateCore(); err != nil {
		log.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Starting lending API", map[string]interface{}{
		"port": cfg.Server.Port,
	})

	db, err := postgres.Connect(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{"error": err.Error()})
	}
	defer db.Close()
	log.Info("Database connected", nil)

	redisCache, err := cache.NewRedisCache(cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatal("Failed to connect to Redis", map[string]interface{}{"error": err.Error()})
	}
	defer redisCache.Close()
	redisClient := redisCache.Client()
	log.Info("Redis connected", nil)

	// Repositories
	clientRepo := postgres.NewClientRepository(db)
	loanRepo := postgres.NewLoanRepository(db)
	requestRepo := postgres.NewRequestRepository(db)
	accountingRepo := postgres.NewAccountingRepository(db)
	metaRepo := postgres.NewMetaRepository(db)
	operatorRepo := postgres.NewOperatorRepository(db)
	procedures := postgres.NewProcedures(db)

	// File storage for applicant documents and generated PDFs
	fileStore, err := storage.NewLocalStore(cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to initialize file storage", map[string]interface{}{"error": err.Error()})
	}

	// Realtime store and hub: the store mirrors the lending book in
	// memory and feeds both the dashboard and websocket clients.
	store := realtime.NewStore()
	if err := seedStore(context.Background(), store, clientRepo, loanRepo, requestRepo, accountingRepo, metaRepo); err != nil {
		log.Fatal("Failed to seed realtime store", map[string]interface{}{"error": err.Error()})
	}
	hub := realtime.NewHub(store, log)
	go hub.Run()

	// Services
	authService := auth.NewService(operatorRepo, cfg.JWT.Secret, cfg.JWT.Expiration)

	formatter := currency.New(cfg.Lending.Locale, cfg.Lending.CurrencyCode)
	docs := docgen.NewGenerator(formatter, "")

	notifier := mailer.New(mailer.Config{
		Host:     cfg.Email.SMTPHost,
		Port:     cfg.Email.SMTPPort,
		Username: cfg.Email.SMTPUsername,
		Password: cfg.Email.SMTPPassword,
		From:     cfg.Email.SMTPFrom,
		UseTLS:   cfg.Email.SMTPUseTLS,
	})

	lendingService := lending.NewService(
		clientRepo, loanRepo, requestRepo, accountingRepo, metaRepo,
		procedures, fileStore, hub, docs, notifier, log,
		lending.Config{
			DefaultAnnualRatePercent: cfg.AnnualRate(),
			NotifyTo:                 cfg.Email.NotifyTo,
		},
	)
	dashboard := lending.NewDashboard(store, formatter)
	assistClient := assist.New(cfg.Assist)

	// Handlers
	val := validator.New()
	authHandler := handler.NewAuthHandler(authService, val, log)
	requestHandler := handler.NewRequestHandler(lendingService, val, log)
	clientHandler := handler.NewClientHandler(lendingService, val, log)
	loanHandler := handler.NewLoanHandler(lendingService, val, log)
	accountingHandler := handler.NewAccountingHandler(lendingService, store, val, log)
	dashboardHandler := handler.NewDashboardHandler(dashboard, redisCache, log)
	documentHandler := handler.NewDocumentHandler(lendingService, dashboard, store, fileStore, docs, log)
	assistHandler := handler.NewAssistHandler(assistClient, val, log)

	r := mux.NewRouter()

	// Global middleware
	r.Use(middleware.CORS)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Recovery)
	r.Use(middleware.CorrelationID)
	r.Use(middleware.NewLoggingMiddleware(log).Log)
	r.Use(middleware.BodyLimit(20 << 20)) // intake forms carry document scans

	authMW := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	idemMW := middleware.NewIdempotencyMiddleware(redisClient, 24*time.Hour)

	// Health checks (no auth)
	r.HandleFunc("/health", healthCheck).Methods("GET")
	r.HandleFunc("/ready", readyCheck(db)).Methods("GET")

	// Uploaded documents and generated PDFs
	r.PathPrefix("/files/").Handler(
		http.StripPrefix("/files/", http.FileServer(http.Dir(cfg.Storage.BasePath))))

	// Public intake: applicants submit requests and check their status
	public := r.PathPrefix("/api/v1/public").Subrouter()
	public.Use(middleware.NewRateLimiter(redisClient, 20, time.Minute).Limit)
	public.Handle("/requests",
		idemMW.Require(http.HandlerFunc(requestHandler.Submit))).Methods("POST")
	public.HandleFunc("/requests/status", requestHandler.Status).Methods("GET")
	public.HandleFunc("/login", authHandler.Login).Methods("POST")

	// Back office (authenticated operators)
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(authMW.Authenticate)
	api.Use(middleware.NewRateLimiter(redisClient, 120, time.Minute).Limit)

	api.HandleFunc("/auth/totp/setup", authHandler.SetupTOTP).Methods("POST")
	api.HandleFunc("/auth/totp/enable", authHandler.EnableTOTP).Methods("POST")
	api.HandleFunc("/auth/totp/disable", authHandler.DisableTOTP).Methods("POST")
	api.HandleFunc("/auth/password", authHandler.ChangePassword).Methods("PUT")

	api.HandleFunc("/requests", requestHandler.List).Methods("GET")
	api.HandleFunc("/requests/{id}/review", requestHandler.Review).Methods("POST")
	api.HandleFunc("/requests/{id}/approve", requestHandler.Approve).Methods("POST")
	api.HandleFunc("/requests/{id}/deny", requestHandler.Deny).Methods("POST")

	api.HandleFunc("/clients", clientHandler.List).Methods("GET")
	api.HandleFunc("/clients/{id}", clientHandler.Get).Methods("GET")
	api.HandleFunc("/clients/{id}", clientHandler.Update).Methods("PUT")
	api.HandleFunc("/clients/{id}", clientHandler.Delete).Methods("DELETE")

	api.HandleFunc("/loans", loanHandler.List).Methods("GET")
	api.HandleFunc("/loans", loanHandler.Create).Methods("POST")
	api.HandleFunc("/loans/quote", loanHandler.Quote).Methods("POST")
	api.HandleFunc("/loans/solve-term", loanHandler.SolveTerm).Methods("POST")
	api.HandleFunc("/loans/{id}", loanHandler.Get).Methods("GET")
	api.HandleFunc("/loans/{id}", loanHandler.Archive).Methods("DELETE")
	api.HandleFunc("/loans/{id}/status", loanHandler.UpdateStatus).Methods("PUT")
	api.HandleFunc("/loans/{id}/payments", loanHandler.RegisterPayment).Methods("POST")
	api.HandleFunc("/loans/{id}/schedule", loanHandler.Schedule).Methods("GET")
	api.HandleFunc("/loans/{id}/contract", documentHandler.Contract).Methods("GET")
	api.HandleFunc("/loans/{id}/receipt", documentHandler.Receipt).Methods("GET")

	api.HandleFunc("/accounting/entries", accountingHandler.ListEntries).Methods("GET")
	api.HandleFunc("/accounting/entries", accountingHandler.CreateEntry).Methods("POST")
	api.HandleFunc("/accounting/entries/{id}", accountingHandler.UpdateEntry).Methods("PUT")
	api.HandleFunc("/accounting/entries/{id}", accountingHandler.DeleteEntry).Methods("DELETE")

	api.HandleFunc("/dashboard", dashboardHandler.Overview).Methods("GET")
	api.HandleFunc("/dashboard/agenda", dashboardHandler.Agenda).Methods("GET")
	api.HandleFunc("/reports/portfolio", documentHandler.PortfolioReport).Methods("GET")

	api.HandleFunc("/assist/draft", assistHandler.Draft).Methods("POST")

	api.HandleFunc("/realtime", hub.ServeWS).Methods("GET")

	// Admin-only routes
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.RequireAdmin)
	admin.HandleFunc("/operators", authHandler.CreateOperator).Methods("POST")
	admin.HandleFunc("/settings/initial-capital", accountingHandler.SetInitialCapital).Methods("PUT")
	admin.HandleFunc("/settings/annual-rate", accountingHandler.SetAnnualRate).Methods("PUT")

	srv := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go sweepOverdueLoop(sweepCtx, lendingService, log)

	go func() {
		log.Info("Lending API started", map[string]interface{}{
			"address": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", map[string]interface{}{"error": err.Error()})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down lending API...", nil)
	stopSweep()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Lending API forced to shutdown", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Lending API stopped gracefully", nil)
}

// seedStore loads the whole lending book into the realtime store so the
// dashboard and websocket clients start from a complete picture.
func seedStore(
	ctx context.Context,
	store *realtime.Store,
	clients *postgres.ClientRepository,
	loans *postgres.LoanRepository,
	requests *postgres.RequestRepository,
	accounting *postgres.AccountingRepository,
	meta *postgres.MetaRepository,
) error {
	allClients, err := clients.ListAll(ctx)
	if err != nil {
		return err
	}
	allLoans, err := loans.ListAll(ctx)
	if err != nil {
		return err
	}
	allRequests, err := requests.ListAll(ctx)
	if err != nil {
		return err
	}
	allEntries, err := accounting.ListAll(ctx)
	if err != nil {
		return err
	}
	allMeta, err := meta.All(ctx)
	if err != nil {
		return err
	}

	store.Seed(allClients, allLoans, allRequests, allEntries, allMeta)
	return nil
}

// sweepOverdueLoop periodically flags loans that missed a payment.
func sweepOverdueLoop(ctx context.Context, svc *lending.Service, log logger.Logger) {
	ticker := time.NewTicker(overdueSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			marked, err := svc.SweepOverdue(ctx)
			if err != nil {
				log.Error("Overdue sweep failed", map[string]interface{}{"error": err.Error()})
				continue
			}
			if marked > 0 {
				log.Info("Marked overdue loans", map[string]interface{}{"count": marked})
			}
		}
	}
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	_ = r
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"lending-api","timestamp":"` + time.Now().Format(time.RFC3339) + `"}`))
}

func readyCheck(db interface{ Ping() error }) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = r
		if err := db.Ping(); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"not ready","reason":"database unavailable"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready","service":"lending-api"}`))
	}
}
