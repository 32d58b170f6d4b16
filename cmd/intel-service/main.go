package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"competitive-intel-agent/internal/intel/config"
	delivery "competitive-intel-agent/internal/intel/delivery/http"
	"competitive-intel-agent/internal/intel/repository"
	"competitive-intel-agent/internal/intel/service"
	"competitive-intel-agent/internal/intel/store"
	"competitive-intel-agent/pkg/logger"
	"competitive-intel-agent/pkg/telegram"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"google.golang.org/genai"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the competitive intelligence service",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	// Create a context that is canceled on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	appLogger.Info("Starting Competitive Intelligence Service", logger.Field("name", cfg.App.Name))

	// Initialize Gemini client
	genAiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.Gemini.APIKey,
	})
	if err != nil {
		appLogger.Fatal("Failed to initialize Gemini client", logger.ErrorField(err))
	}

	// Initialize Telegram notifier
	notifier, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	if err != nil {
		appLogger.Fatal("Failed to initialize Telegram notifier", logger.ErrorField(err))
	}

	// Initialize store and repositories
	dataStore := store.New()
	aiRepo, err := repository.NewGeminiAIRepository(cfg, appLogger, genAiClient)
	if err != nil {
		appLogger.Fatal("Failed to initialize AI repository", logger.ErrorField(err))
	}
	embedRepo := repository.NewGeminiEmbeddingRepository(cfg, appLogger, genAiClient)
	newsRepo := repository.NewGoogleNewsRepository(cfg, appLogger)

	// Initialize services
	pool := service.NewWorkerPool(cfg.Pipeline.QueueSize, appLogger)
	pool.Start(ctx, cfg.Pipeline.WorkerCount)
	defer pool.Stop()

	retrieval := service.NewRetrievalEngine(dataStore, embedRepo, cfg, appLogger)
	orchestrator := service.NewOrchestrator(dataStore, aiRepo, newsRepo, retrieval, pool, notifier, cfg, appLogger)
	renderer := service.NewDocumentRenderer()
	researchMgr := service.NewResearchManager(dataStore, aiRepo, retrieval, renderer, cfg, appLogger)
	chatSvc := service.NewChatService(dataStore, aiRepo, retrieval, cfg, appLogger)

	refresher := service.NewNewsRefresher(orchestrator, cfg, appLogger)
	if err := refresher.Start(ctx); err != nil {
		appLogger.Fatal("Failed to start news refresher", logger.ErrorField(err))
	}
	defer refresher.Stop()

	// Initialize Echo server
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"message": "Competitive Intelligence Service API"})
	})

	// Initialize handlers and routes
	api := e.Group("/api")
	delivery.NewCompanyHandler(orchestrator, dataStore, appLogger).RegisterRoutes(api)
	delivery.NewNewsHandler(dataStore, appLogger).RegisterRoutes(api)
	delivery.NewInsightHandler(orchestrator, dataStore, appLogger).RegisterRoutes(api)
	delivery.NewResearchHandler(researchMgr, dataStore, appLogger).RegisterRoutes(api)
	delivery.NewChatHandler(chatSvc, appLogger).RegisterRoutes(api)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.API.Port)
		appLogger.Info("HTTP server starting", logger.Field("address", addr))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server failed to start", logger.ErrorField(err))
			stop() // trigger shutdown
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	appLogger.Info("Shutting down server...")

	// Gracefully shutdown the server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Fatal("Server forced to shutdown", logger.ErrorField(err))
	}

	appLogger.Info("Server exiting")
}

func main() {
	rootCmd := &cobra.Command{Use: "intel-service"}

	serveCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "Path to the configuration file")

	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing intel-service CLI: %s\n", err)
		os.Exit(1)
	}
}
