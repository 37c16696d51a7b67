package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"schoolpay_echo/internal/handlers"
	appMiddleware "schoolpay_echo/internal/middleware"
	"schoolpay_echo/internal/services"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	// Initialize Firebase
	credPath := os.Getenv("FIREBASE_CREDENTIALS_PATH")
	if credPath == "" {
		credPath = "./firebase-service-account.json"
	}

	authClient, err := services.InitFirebase(credPath)
	if err != nil {
		log.Printf("Warning: Firebase initialization failed: %v", err)
		log.Println("Auth features will not work until valid credentials are provided")
	}

	// Initialize Database
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	db, err := services.InitDB(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := services.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Initialize Redis (optional; verification locks and summary caching)
	var cache *services.RedisCache
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cache, err = services.NewRedisCache(redisURL)
		if err != nil {
			log.Printf("Warning: Redis initialization failed: %v", err)
			cache = nil
		}
	} else {
		log.Println("Warning: REDIS_URL not set, running without cache and verification locks")
	}

	tokenSecret := os.Getenv("PAYMENT_TOKEN_SECRET")
	if tokenSecret == "" {
		log.Fatal("PAYMENT_TOKEN_SECRET not set")
	}

	// Wire the payment flow: ledger -> orchestrator -> reconciler
	gateway := services.NewMidtransService()
	ledger := services.NewLedgerService(db)
	orders := services.NewOrderService(db, ledger, gateway)
	verifier := services.NewVerifyService(db, ledger, gateway, cache)

	// Create Echo instance
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = appMiddleware.CustomErrorHandler

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authClient)
	paymentHandler := handlers.NewPaymentHandler(orders, verifier, cache, []byte(tokenSecret))
	accountHandler := handlers.NewAccountHandler(ledger, cache)

	// Public routes
	e.POST("/auth/login", authHandler.HandleLogin)
	e.POST("/auth/logout", authHandler.HandleLogout)

	// The gateway redirects the browser here; identity comes from the
	// redirect parameters or the pending cookie, not from the session
	e.GET("/payment/return", paymentHandler.Return)

	// Protected routes
	protected := e.Group("")
	protected.Use(appMiddleware.RequireAuth(authClient, db))

	protected.GET("/fees/accounts/:id", accountHandler.Summary)
	protected.POST("/payment/create-order", paymentHandler.CreateOrder)
	protected.POST("/payment/verify", paymentHandler.Verify)

	// Admin routes
	admin := e.Group("/admin")
	admin.Use(appMiddleware.RequireAuth(authClient, db), appMiddleware.RequireAdmin())

	admin.POST("/accounts", accountHandler.SetupAccount)
	admin.POST("/accounts/:id/extra-fees", accountHandler.AddExtraFee)
	admin.POST("/refunds", accountHandler.RecordRefund)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	e.Logger.Fatal(e.Start(":" + port))
}
