package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/vinin2308/foodflow-cardapio/config"
	"github.com/vinin2308/foodflow-cardapio/middlewares"
	"github.com/vinin2308/foodflow-cardapio/models"
	"github.com/vinin2308/foodflow-cardapio/realtime"
	"github.com/vinin2308/foodflow-cardapio/router"
	"github.com/vinin2308/foodflow-cardapio/services"
	"github.com/vinin2308/foodflow-cardapio/store"
	"github.com/vinin2308/foodflow-cardapio/utils"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}
	utils.InitLogger()
}

func main() {
	db, err := config.InitDB()
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}

	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	autoMigrate(db)

	hub := realtime.NewHub(utils.ErrorLogger)
	tabStore := store.NewTabStore(db)
	tabService := services.NewTabService(tabStore, hub, utils.InfoLogger)

	monitor := services.NewStaleMonitor(tabService, utils.ErrorLogger)
	monitor.Start()
	defer monitor.Stop()

	r := router.SetupRouter(db, tabService, hub)

	// global per-IP limit, the auth endpoints carry their own stricter one
	rateLimiter := middlewares.NewRateLimiter(120, 60)
	r.Use(rateLimiter.RateLimit())

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	utils.InfoLogger.Printf("Server listening on :%s", port)
	if err := r.Run(":" + port); err != nil {
		utils.ErrorLogger.Fatalf("Server stopped: %v", err)
	}
}

func autoMigrate(db *gorm.DB) {
	err := db.AutoMigrate(
		&models.Manager{},
		&models.Category{},
		&models.Dish{},
		&models.Table{},
		&models.Tab{},
		&models.TabItem{},
		&models.TabMember{},
		&models.Payment{},
	)
	if err != nil {
		utils.ErrorLogger.Fatalf("Auto migration failed: %v", err)
	}
}
