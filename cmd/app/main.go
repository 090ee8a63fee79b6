package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"poker_arena/internal/config"
	"poker_arena/internal/db"
	httpServer "poker_arena/internal/http"
	"poker_arena/internal/http/middleware"
	"poker_arena/internal/logger"
	"poker_arena/internal/pubsub"
	"poker_arena/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const version = "1.0.0"

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)
	service.InitJWT(cfg.JWTSecret)

	dbPool := db.Connect(cfg.DatabaseURL)
	defer dbPool.Close()

	// Redis carries cross-node fan-out; single-node deployments fall back to
	// the in-process broker.
	var broker pubsub.Broker
	if cfg.RedisAddr != "" {
		redisBroker, err := pubsub.NewRedisBroker(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err != nil {
			logger.Fatal("failed to connect redis", "error", err)
		}
		defer redisBroker.Close()
		broker = redisBroker
		logger.Info("redis broker connected", "addr", cfg.RedisAddr)
	} else {
		broker = pubsub.NewMemoryBroker()
		logger.Warn("REDIS_ADDR not set, using in-process broker")
	}

	battles := service.NewBattleService(dbPool, broker)
	matchmaking := service.NewMatchmakingService(dbPool, battles, broker, service.MatchmakingOptions{
		MatchTimeout: cfg.MatchTimeout,
		RatingRange:  cfg.RatingRange,
		TotalRounds:  cfg.TotalRounds,
	})
	engine := service.NewEngine(matchmaking, battles)

	watchdogCtx, stopWatchdog := context.WithCancel(context.Background())
	defer stopWatchdog()
	service.NewWatchdog(dbPool, battles, cfg.RoundTimeout).Start(watchdogCtx)

	middleware.InitRedisRateLimiter(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)

	r := gin.Default()

	// CORS for the frontend living on a different origin
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	httpServer.RegisterRoutes(r, dbPool, engine, broker, cfg, version)

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: r,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	stopWatchdog()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
