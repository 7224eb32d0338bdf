package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"strategy-databank/internal/api/handlers"
	"strategy-databank/internal/api/middleware"
	"strategy-databank/internal/config"
	"strategy-databank/internal/data"
	"strategy-databank/internal/observability"
	"strategy-databank/internal/search"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogging(cfg)

	if wd, err := os.Getwd(); err == nil {
		log.Info().Str("working_directory", wd).Msg("starting")
	}

	// Set up Gin router
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Apply middleware
	router.Use(middleware.CORS(cfg.Server.CORSOrigins...))
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorHandler())

	// Initialize handlers
	cache := data.NewReportCache(cfg.Analysis.CacheTTL)
	defer cache.Close()

	opts := cfg.ToOptions()
	searchLogger := log.With().Str("component", "search").Logger()
	opts.Logger = &searchLogger
	opts.Cache = cache
	registry := search.NewRegistry()

	analysisHandler := handlers.NewAnalysisHandler(cache, cfg.Analysis.InitialCapital)
	databankHandler := handlers.NewDatabankHandler(registry, search.NewDriver(opts), cfg.Search)
	metricHandler := handlers.NewMetricHandler()

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "active_searches": len(registry.List())})
	})
	router.GET("/metrics", gin.WrapH(observability.Handler()))

	// API routes
	api := router.Group("/api/v1")
	{
		api.GET("/metrics", metricHandler.ListMetrics)
		api.POST("/analysis/full", analysisHandler.RunFullAnalysis)

		api.GET("/databank", databankHandler.ListSearches)
		api.GET("/databank/ws", databankHandler.Websocket)
		api.POST("/databank/find-portfolios-stream", databankHandler.FindPortfoliosStream)
		api.GET("/databank/:id", databankHandler.GetSearch)
		api.POST("/databank/:id/pause", databankHandler.TogglePause)
		api.POST("/databank/:id/stop", databankHandler.StopSearch)
	}

	serveStatic(router, cfg.Server.StaticDir)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Info().
		Str("addr", addr).
		Str("env", cfg.Server.Env).
		Float64("correlation_threshold", *cfg.Search.CorrelationThreshold).
		Int("databank_size", cfg.Search.DatabankSize).
		Msg("starting API server")
	if err := router.Run(addr); err != nil {
		log.Fatal().Err(err).Msg("failed to start server")
	}
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Logging.Format == "console" && !cfg.Production() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// serveStatic serves a built single-page app from dir, if it exists.
func serveStatic(router *gin.Engine, dir string) {
	if dir == "" {
		dir = "./web/dist"
	}
	if _, err := os.Stat(dir); err != nil {
		log.Info().Str("dir", dir).Msg("static directory not found, skipping static file serving")
		return
	}

	// Serve static assets
	router.Static("/assets", filepath.Join(dir, "assets"))
	router.StaticFile("/favicon.ico", filepath.Join(dir, "favicon.ico"))

	// Serve index.html for all non-API routes (SPA routing)
	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(404, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "Not found"}})
			return
		}
		c.File(filepath.Join(dir, "index.html"))
	})
	log.Info().Str("dir", dir).Msg("serving static files")
}
