package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tekvare/erp-ai-worker/internal/clients/ollama"
	"github.com/tekvare/erp-ai-worker/internal/clients/redis"
	"github.com/tekvare/erp-ai-worker/internal/db"
	"github.com/tekvare/erp-ai-worker/internal/logger"
	"github.com/tekvare/erp-ai-worker/internal/observability"
	"github.com/tekvare/erp-ai-worker/internal/repos"
	"github.com/tekvare/erp-ai-worker/internal/server"
	"github.com/tekvare/erp-ai-worker/internal/services"
	"github.com/tekvare/erp-ai-worker/internal/utils"
	"github.com/tekvare/erp-ai-worker/internal/worker"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Tracing
	shutdownTracing := observability.InitTracing(ctx, log, "erp-ai-worker")
	if shutdownTracing != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownTracing(shutdownCtx)
		}()
	}

	// Env
	lockOwner := utils.GetEnv("LOCK_OWNER", "erp-ai-worker-1", log)
	processorTag := utils.GetEnv("PROCESSOR_TAG", "assistant", log)
	pollMs := utils.GetEnvAsInt("POLL_MS", 3000, log)
	lockStaleMs := utils.GetEnvAsInt("LOCK_STALE_MS", 600000, log)
	cacheTTLSec := utils.GetEnvAsInt("CONTEXT_CACHE_TTL_SECONDS", 60, log)
	personasFile := utils.GetEnv("PERSONAS_FILE", "", log)
	httpAddr := utils.GetEnv("HTTP_ADDR", ":8090", log)
	autoMigrate := utils.GetEnvAsBool("AUTO_MIGRATE", true, log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if autoMigrate {
		if err = postgresService.AutoMigrateAll(); err != nil {
			log.Error("Postgres auto migration failed", "error", err)
			os.Exit(1)
		}
	}
	thePG := postgresService.DB()

	// Redis (optional)
	cache, err := redis.NewCache(log)
	if err != nil {
		log.Error("Redis init failed", "error", err)
		os.Exit(1)
	}
	if cache == nil {
		log.Info("REDIS_ADDR not set, context cache disabled")
	} else {
		defer cache.Close()
	}

	// Repos
	userRepo := repos.NewUserRepo(thePG, log)
	chatRequestRepo := repos.NewChatRequestRepo(thePG, log)
	chatMessageRepo := repos.NewChatMessageRepo(thePG, log)
	suggestionRepo := repos.NewSuggestionRepo(thePG, log)

	// Services
	personas, err := services.LoadPersonas(personasFile, log)
	if err != nil {
		log.Error("Could not load personas", "error", err)
		os.Exit(1)
	}
	contextService := services.NewContextService(log, userRepo, personas, cache, time.Duration(cacheTTLSec)*time.Second)
	ollamaClient, err := ollama.NewClient(log)
	if err != nil {
		log.Error("Could not init OllamaClient", "error", err)
		os.Exit(1)
	}

	// Worker
	processor := worker.NewProcessor(log, chatRequestRepo, chatMessageRepo, suggestionRepo, contextService, ollamaClient, lockOwner, lockOwner)
	w := worker.NewWorker(
		log,
		chatRequestRepo,
		processor,
		processorTag,
		lockOwner,
		time.Duration(pollMs)*time.Millisecond,
		time.Duration(lockStaleMs)*time.Millisecond,
	)

	// Ops HTTP server
	router := server.NewRouter(server.RouterConfig{
		Log:          log,
		DB:           postgresService,
		Cache:        cache,
		Requests:     chatRequestRepo,
		LockOwner:    lockOwner,
		ProcessorTag: processorTag,
	})
	httpServer := &http.Server{Addr: httpAddr, Handler: router}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Run(gCtx)
	})
	g.Go(func() error {
		log.Info("Ops server listening", "addr", httpAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Worker exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("Worker shut down")
}
