package handlers

import (
	"errors"
	"net/http"

	"poker_arena/internal/http/middleware"
	"poker_arena/internal/repository"
	"poker_arena/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Handler struct {
	Engine   *service.Engine
	UserRepo *repository.UserRepository
}

func NewHandler(db *pgxpool.Pool, engine *service.Engine) *Handler {
	return &Handler{
		Engine:   engine,
		UserRepo: repository.NewUserRepository(db),
	}
}

func userID(c *gin.Context) (int64, bool) {
	id, ok := middleware.UserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
	return id, ok
}

// fail maps engine errors onto HTTP statuses.
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, service.ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
	case errors.Is(err, service.ErrBattleClosed):
		c.JSON(http.StatusConflict, gin.H{"error": "battle closed"})
	case errors.Is(err, service.ErrInvalidMode):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid mode"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
