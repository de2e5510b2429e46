// Package main runs the classroom polling HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/classpoll/backend/config"
	"github.com/classpoll/backend/internal/analytics"
	"github.com/classpoll/backend/internal/auth"
	"github.com/classpoll/backend/internal/middleware"
	"github.com/classpoll/backend/internal/models"
	"github.com/classpoll/backend/internal/polls"
	"github.com/classpoll/backend/internal/realtime"
	"github.com/classpoll/backend/internal/rooms"
	"github.com/classpoll/backend/pkg/database"
	"github.com/classpoll/backend/pkg/redis"
	"github.com/classpoll/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	// Redis is optional: without it the hub fans out to local sessions only,
	// which is correct for a single-instance deployment.
	var pubsub *realtime.RedisPubSub
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		pubsub = realtime.NewRedisPubSub(rdb.Client, logger)
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	instanceID := uuid.New().String()
	var hub *realtime.Hub
	if pubsub != nil {
		hub = realtime.NewHub(instanceID, logger, pubsub, pubsub)
	} else {
		hub = realtime.NewHub(instanceID, logger, nil, nil)
	}

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Rooms and polls
	roomRepo := rooms.NewRepository(pool)
	pollRepo := polls.NewRepository(pool)
	roomHandler := rooms.NewHandler(roomRepo, pollRepo, logger)
	pollHandler := polls.NewHandler(pollRepo, roomRepo, logger)

	// Analytics
	analyticsHandler := analytics.NewHandler(pool, logger)

	// Realtime
	coordinator := realtime.NewCoordinator(roomRepo, pollRepo, hub, logger)

	jwtValidate := middleware.TokenValidatorFunc(func(token string) (uuid.UUID, string, string, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return uuid.Nil, "", "", err
		}
		return claims.UserID, claims.Username, claims.Role, nil
	})

	// WebSocket identity: validate the token, then load the user so a stale
	// token for a deleted account cannot open a session.
	identify := func(token string) (models.UserPublic, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return models.UserPublic{}, err
		}
		user, err := authRepo.GetByID(context.Background(), claims.UserID)
		if err != nil {
			return models.UserPublic{}, err
		}
		return user.ToPublic(), nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	v1 := router.Group("/api/v1")
	{
		v1.POST("/signup", authHandler.Signup)
		v1.POST("/login", authHandler.Login)
	}

	// Protected API (JWT required)
	api := router.Group("/api/v1")
	api.Use(middleware.JWT(jwtValidate))
	{
		api.GET("/me", authHandler.Me)

		// Rooms (any authenticated user)
		api.GET("/rooms/:roomId", roomHandler.GetRoom)
		api.GET("/rooms/:roomId/polls", roomHandler.GetRoomPolls)

		// Polls (any authenticated user)
		api.GET("/polls/:pollId/results", pollHandler.GetResults)
		api.GET("/polls/:pollId/responses", pollHandler.GetResponses)
		api.GET("/polls/user/attended", pollHandler.GetAttended)

		// Teacher-only management
		teacher := api.Group("/teacher")
		teacher.Use(middleware.RequireTeacher())
		{
			teacher.POST("/rooms", roomHandler.Create)
			teacher.GET("/rooms", roomHandler.List)
			teacher.PUT("/rooms/:roomId", roomHandler.Update)
			teacher.DELETE("/rooms/:roomId", roomHandler.Delete)

			teacher.POST("/polls", pollHandler.Create)
			teacher.PUT("/polls/:pollId", pollHandler.Update)
			teacher.DELETE("/polls/:pollId", pollHandler.Delete)

			teacher.GET("/analytics", analyticsHandler.GetTeacherAnalytics)
		}
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, coordinator, logger, identify))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
