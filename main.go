package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/flowfox/tasksync/api"
	"github.com/flowfox/tasksync/database"
	"github.com/flowfox/tasksync/integrations"
	"github.com/flowfox/tasksync/syncer"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	levelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))
	if levelStr == "" {
		levelStr = "debug"
	}
	level, err := zapcore.ParseLevel(levelStr)
	if err != nil {
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      true,
		Encoding:         "console",
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, _ := config.Build()
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	viper.SetConfigName("config")
	viper.SetConfigType("toml")
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		zap.L().Fatal("Error reading config file", zap.Error(err))
	}

	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "tasksync.db"
	}
	db := database.Init(dbPath)
	sqlDB, _ := db.DB()

	port := viper.GetString("server.port")
	if port == "" {
		port = "8080"
	}

	remote := func(token string) syncer.RemoteTasks {
		return integrations.NewTasksClient(token)
	}
	engine := syncer.NewOrchestrator(database.NewStore(db), remote)

	router := gin.Default()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))

	apiHandler := &api.Handler{
		DB:     db,
		Engine: engine,
		Remote: remote,
	}
	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/health", apiHandler.HealthCheckHandler)
		apiGroup.GET("/task-lists", apiHandler.ListTaskListsHandler)
		apiGroup.POST("/sync", apiHandler.SyncAllHandler)
		apiGroup.POST("/boards/:boardId/sync", apiHandler.SyncBoardHandler)
		apiGroup.GET("/boards/:boardId/mapping", apiHandler.GetBoardMappingHandler)
		apiGroup.POST("/boards/:boardId/mapping", apiHandler.UpsertBoardMappingHandler)
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	zap.L().Info("Starting server", zap.String("port", port))
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("Server error", zap.Error(err))
		}
	}()

	// Optional periodic poll. Sync is pull-based: either triggered through
	// the API or on this timer with a statically configured principal and
	// token.
	pollCtx, stopPolling := context.WithCancel(context.Background())
	var pollers sync.WaitGroup
	interval := viper.GetInt("sync.interval_minutes")
	if interval > 0 {
		principalID := viper.GetString("sync.principal_id")
		accessToken := viper.GetString("google.access_token")
		if principalID == "" || accessToken == "" {
			zap.L().Fatal("sync.interval_minutes is set but sync.principal_id or google.access_token is missing")
		}

		zap.L().Info("Starting periodic sync", zap.Int("intervalMinutes", interval))
		pollers.Add(1)
		go func() {
			defer pollers.Done()
			ticker := time.NewTicker(time.Duration(interval) * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-pollCtx.Done():
					return
				case <-ticker.C:
					results, err := engine.SyncAllMappedBoards(pollCtx, principalID, accessToken)
					if err != nil {
						zap.L().Error("Periodic sync failed", zap.Error(err))
						continue
					}
					zap.L().Info("Periodic sync finished", zap.Int("boards", len(results)))
				}
			}
		}()
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	var once sync.Once

	cleanup := func(reason string) {
		zap.L().Info("Shutdown initiated", zap.String("reason", reason))

		stopPolling()
		pollers.Wait()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		zap.L().Info("Shutting down HTTP server...")
		if err := srv.Shutdown(ctx); err != nil {
			zap.L().Error("Error shutting down server", zap.Error(err))
		} else {
			zap.L().Info("HTTP server shut down gracefully.")
		}

		if sqlDB != nil {
			if err := sqlDB.Close(); err != nil {
				zap.L().Error("Error closing database", zap.Error(err))
			} else {
				zap.L().Info("Database connection closed.")
			}
		}
		close(done)
	}

	go func() {
		sig := <-sigCh
		once.Do(func() {
			cleanup(sig.String())
		})

		// if a second signal is caught, exit immediately
		go func() {
			<-sigCh
			zap.L().Info("Second interrupt signal received. Exiting immediately.")
			os.Exit(1)
		}()
	}()

	<-done
	zap.L().Info("Exiting...")
}
