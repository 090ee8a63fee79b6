package ws

import (
	"net/http"
	"time"

	"poker_arena/internal/client"
	"poker_arena/internal/logger"
	"poker_arena/internal/pubsub"
	"poker_arena/internal/repository"
	"poker_arena/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// origin checks belong to the reverse proxy in this deployment
	CheckOrigin: func(*http.Request) bool { return true },
}

// Handle upgrades the connection and runs a session adapter for its lifetime.
func Handle(engine *service.Engine, broker pubsub.Broker, users *repository.UserRepository, matchTimeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token required"})
			return
		}

		userID, err := service.ParseJWT(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		user, err := users.GetByID(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("ws upgrade failed", "user", userID, "error", err)
			return
		}

		session := client.NewSession(engine, broker, userID, user.Rating, matchTimeout)
		logger.Info("ws connected", "user", userID)

		NewClient(userID, conn, session).Run()

		logger.Info("ws disconnected", "user", userID)
	}
}
