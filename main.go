package main

import (
	"log"
	"net/http"
	"os"

	"dealwatch/internal/api"
	"dealwatch/internal/config"
	"dealwatch/internal/database"
	"dealwatch/internal/services/monitor"
	"dealwatch/internal/services/notify"
	"dealwatch/internal/services/pricing"
	"dealwatch/internal/services/referral"
	"dealwatch/internal/services/wishlist"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Initialize configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Initialize core services
	store := wishlist.NewStore(db)
	source := pricing.NewClient(cfg.PriceAPIBase, cfg.PriceAPIKey)
	mon := monitor.New(db, store, source)
	gateway := notify.NewSMSGateway(cfg.SMSAPIBase, cfg.SMSAPIKey, cfg.SMSSender)
	dispatcher := notify.NewDispatcher(db, store, gateway, notify.NewUserDirectory(db))
	ledger := referral.NewLedger(db)

	// Initialize Gin router
	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API routes
	apiGroup := r.Group("/api/v1")
	handler := api.SetupRoutes(apiGroup, db, store, mon, dispatcher, ledger)

	// Live drop-event feed
	r.GET("/ws", handler.HandleWS)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Port
	}

	log.Printf("Server starting on port %s", port)
	log.Fatal(http.ListenAndServe(":"+port, r))
}
