package main

import (
	"context"
	"fmt"
	"log"

	"livestock-heat-api/cluster"
	"livestock-heat-api/config"
	"livestock-heat-api/forecast"
	"livestock-heat-api/handlers"
	"livestock-heat-api/middleware"
	"livestock-heat-api/scheduler"
	"livestock-heat-api/services"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	// Load .env if present (local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.GetDSN()), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get sql db handle: %v", err)
	}
	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	// pgx pool for the raw history queries
	pool, err := pgxpool.New(context.Background(), cfg.Database.GetURL())
	if err != nil {
		log.Fatalf("Failed to create pgx pool: %v", err)
	}
	defer pool.Close()

	cache, err := services.NewCacheService(cfg.Redis)
	if err != nil {
		log.Printf("Redis unavailable, caching and streaming degraded: %v", err)
	}
	defer cache.Close()

	store, err := forecast.NewModelStore(cfg.Model.Dir)
	if err != nil {
		log.Fatalf("Failed to open model store: %v", err)
	}

	forecastSvc := forecast.NewService(forecast.NewDBHistoryLoader(pool), store, db, cache)
	clusterSvc := cluster.NewService(cluster.NewDBStatsLoader(db))

	sched := scheduler.New(forecastSvc, cfg.Scheduler.TrainCron)
	if err := sched.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Initialize Gin router
	router := gin.Default()
	router.Use(middleware.SetupCORS(cfg.CORS))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "UP",
			"message": "Livestock Heat API is running",
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	forecastHandler := handlers.NewForecastHandler(forecastSvc)
	clusterHandler := handlers.NewClusterHandler(clusterSvc)
	predictionsHandler := handlers.NewPredictionsHandler(db, cache)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/forecasting/train", forecastHandler.Train)
		v1.GET("/forecasting/predict/:cattle_id", forecastHandler.Predict)

		v1.POST("/clustering/train", clusterHandler.Train)
		v1.GET("/clustering/cattle/:cattle_id", clusterHandler.Assign)
		v1.GET("/clustering/all", clusterHandler.All)

		v1.GET("/predictions", predictionsHandler.List)
	}

	router.GET("/ws/forecasts", handlers.ForecastStream(cache))

	// Start server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Starting server on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
