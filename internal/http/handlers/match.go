package handlers

import (
	"net/http"

	"poker_arena/internal/domain"

	"github.com/gin-gonic/gin"
)

type startMatchingRequest struct {
	Mode string `json:"mode" binding:"required"`
}

// StartMatching enqueues the caller. A synchronous match returns the battle
// id; otherwise the caller gets their waiting entry and subscribes to its
// topic (over the websocket) to learn about the pairing.
func (h *Handler) StartMatching(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req startMatchingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode required"})
		return
	}

	user, err := h.UserRepo.GetByID(c.Request.Context(), uid)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	res, err := h.Engine.StartMatching(c.Request.Context(), uid, domain.Mode(req.Mode), user.Rating)
	if err != nil {
		fail(c, err)
		return
	}

	if res.Matched() {
		c.JSON(http.StatusOK, gin.H{
			"status":    "matched",
			"battle_id": res.Battle.ID,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "matching",
		"entry":  res.Entry,
	})
}

// CancelMatching withdraws the caller's waiting entry. Always succeeds.
func (h *Handler) CancelMatching(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	if err := h.Engine.CancelMatching(c.Request.Context(), uid); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}
