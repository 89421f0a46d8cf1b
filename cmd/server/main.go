package main

import (
	"alcyxob/upload-broker/internal/api"
	"alcyxob/upload-broker/internal/config"
	"alcyxob/upload-broker/internal/logging"
	"alcyxob/upload-broker/internal/repository"
	"alcyxob/upload-broker/internal/repository/memory"
	"alcyxob/upload-broker/internal/repository/mongo"
	"alcyxob/upload-broker/internal/repository/postgres"
	"alcyxob/upload-broker/internal/service"
	"alcyxob/upload-broker/internal/storage"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
)

// @title Upload Broker API
// @version 1.0
// @description Issues time-limited grants for direct-to-storage uploads and confirms them afterwards.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Could not load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	ctx := context.Background()
	logger.Info(ctx, "starting upload broker", "backend", string(cfg.Storage.Backend), "database", cfg.Database.Driver)

	// --- Transaction Store ---
	uploadRepo, closeRepo, err := openRepository(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error(ctx, "could not open transaction store", "error", err)
		os.Exit(1)
	}
	defer closeRepo()

	// --- Initialize Storage ---
	// A misconfigured backend does not stop the server; requests report it instead.
	backend, err := storage.New(ctx, cfg.Storage, cfg.Server.BaseURL)
	if err != nil {
		logger.Error(ctx, "storage backend unavailable", "backend", string(cfg.Storage.Backend), "error", err)
		backend = storage.Unavailable(cfg.Storage.Backend, err)
	}

	// --- Initialize Services ---
	uploadService := service.NewUploadService(uploadRepo, backend, logger, service.UploadOptions{
		GrantTTL:    cfg.Storage.GrantTTL,
		CallTimeout: cfg.Storage.CallTimeout,
	})

	// --- Initialize Gin Engine ---
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestLogger(logger))
	api.SetupRoutes(router, cfg.JWT.Secret, uploadService, logger)

	handler := cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	})(router)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info(ctx, "server listening", "address", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "listen failed", "error", err)
			os.Exit(1)
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info(ctx, "shutting down server")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error(ctx, "server forced to shutdown", "error", err)
	}
	logger.Info(ctx, "server exiting")
}

// openRepository connects the configured transaction store and returns a
// function that releases it.
func openRepository(ctx context.Context, cfg config.DatabaseConfig, logger logging.Logger) (repository.UploadTransactionRepository, func(), error) {
	switch cfg.Driver {
	case "mongo":
		client, err := mongo.ConnectDB(cfg.URI)
		if err != nil {
			return nil, nil, err
		}
		db := client.Database(cfg.Name)

		idxCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		if err := mongo.EnsureUploadIndexes(idxCtx, db.Collection(mongo.UploadCollection)); err != nil {
			logger.Warn(ctx, "could not ensure upload indexes", "error", err)
		}

		closeFn := func() {
			if err := mongo.DisconnectDB(client); err != nil {
				logger.Error(ctx, "failed to disconnect mongo", "error", err)
			}
		}
		return mongo.NewMongoUploadRepository(db), closeFn, nil

	case "postgres":
		db, err := postgres.Open(cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		migrateCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		if err := postgres.Migrate(migrateCtx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}

		closeFn := func() {
			if err := db.Close(); err != nil {
				logger.Error(ctx, "failed to close postgres", "error", err)
			}
		}
		return postgres.NewUploadRepository(db), closeFn, nil

	case "memory":
		logger.Warn(ctx, "using in-memory transaction store; records are lost on restart")
		return memory.NewUploadRepository(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
