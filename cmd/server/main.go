package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"gwi.com/tenant-chatbot/internal/api"
	"gwi.com/tenant-chatbot/internal/auth"
	"gwi.com/tenant-chatbot/internal/config"
	"gwi.com/tenant-chatbot/internal/core"
	"gwi.com/tenant-chatbot/internal/logging"
	"gwi.com/tenant-chatbot/internal/store"
)

// pipelineStore is what the chat pipeline reads from. Both backends implement it.
type pipelineStore interface {
	core.TenantStore
	core.TagSource
	core.KnowledgeStore
	Close() error
}

func main() {
	seedFile := flag.String("seed", "", "Import chatbots and knowledge from a YAML seed file into SQLite and exit")
	issueToken := flag.String("issue-token", "", "Print an admin token for the given subject and exit")
	flag.Parse()

	if *issueToken != "" {
		cfg, err := config.LoadAuth()
		if err != nil {
			log.Fatal(err)
		}
		token, err := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL).GenerateJWT(*issueToken)
		if err != nil {
			log.Fatalf("Failed to issue admin token: %v", err)
		}
		fmt.Println(token)
		return
	}

	// Load configuration
	config.LoadConfig()
	cfg := config.AppConfig

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)

	ctx := context.Background()

	var dbStore pipelineStore
	var adminStore api.AdminStore
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		if *seedFile != "" {
			logger.Fatal("Seeding is only supported with the sqlite driver")
		}
		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			logger.Fatal("Failed to initialize database", zap.Error(err))
		}
		dbStore = pg
	default:
		sqlite, err := store.NewSQLiteStore(cfg.DatabaseURL, logger)
		if err != nil {
			logger.Fatal("Failed to initialize database", zap.Error(err))
		}
		if *seedFile != "" {
			logger.Info("Starting seed import", zap.String("file", *seedFile))
			n, err := sqlite.SeedFromFile(ctx, *seedFile, core.DefaultTagCatalog().Tags())
			sqlite.Close()
			if err != nil {
				logger.Fatal("Seed import failed", zap.Error(err))
			}
			logger.Info("Seed import complete", zap.Int("entities", n))
			return
		}
		dbStore = sqlite
		adminStore = sqlite
	}
	defer dbStore.Close()

	var provider core.Provider = core.DisabledProvider{}
	if cfg.LLMProvider == config.ProviderGemini {
		gemini, err := core.NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Gemini client", zap.Error(err))
		}
		defer gemini.Close()
		provider = gemini
	} else {
		logger.Warn("LLM provider disabled, every chat request will fail with LLM_UNAVAILABLE")
	}

	chatService := core.NewChatService(
		core.NewTenantResolver(dbStore),
		core.NewIntentClassifier(dbStore),
		core.NewKnowledgeRetriever(dbStore, logger),
		core.NewContextRanker(cfg.MaxContextItems),
		core.NewAnswerGenerator(provider, cfg.LLMTimeout, logger),
		core.ChatOptions{MaxHistoryMessages: cfg.MaxChatHistoryMessages, Locale: cfg.Locale},
		logger,
	)

	var limiter *api.RateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = api.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	apiHandler := api.NewAPIHandler(chatService, adminStore, tokens, logger)
	router := api.NewRouter(apiHandler, api.RouterOptions{
		Limiter:           limiter,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
	}, logger)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.LLMTimeout + 15*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("Starting server", zap.String("addr", serverAddr), zap.String("driver", cfg.DatabaseDriver))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Could not listen", zap.String("addr", serverAddr), zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
		return
	}
	logger.Info("Server exiting gracefully")
}
