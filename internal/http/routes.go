package http

import (
	"poker_arena/internal/config"
	"poker_arena/internal/http/handlers"
	"poker_arena/internal/http/middleware"
	"poker_arena/internal/pubsub"
	"poker_arena/internal/service"
	"poker_arena/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

func RegisterRoutes(r *gin.Engine, db *pgxpool.Pool, engine *service.Engine, broker pubsub.Broker, cfg *config.Config, version string) {
	h := handlers.NewHandler(db, engine)
	health := handlers.NewHealthHandler(db, version)

	r.GET("/healthz", health.Liveness)
	r.GET("/readyz", health.Readiness)

	r.GET("/ws", ws.Handle(engine, broker, h.UserRepo, cfg.MatchTimeout))

	api := r.Group("/api")
	api.Use(middleware.Metrics())
	api.Use(middleware.RateLimit(cfg.APIRateLimit, cfg.APIRateWindow))
	api.Use(middleware.Auth())
	{
		api.POST("/match/start", h.StartMatching)
		api.POST("/match/cancel", h.CancelMatching)
		api.GET("/battles", h.History)
		api.GET("/battles/:id", h.LoadBattle)
		api.POST("/battles/:id/answer", middleware.UserRateLimit(cfg.APIRateLimit, cfg.APIRateWindow), h.SubmitAnswer)
		api.POST("/battles/:id/leave", h.LeaveBattle)
	}
}
