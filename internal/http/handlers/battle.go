package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// LoadBattle returns the caller's view of a battle: battle fields, the full
// round list and the opponent projection.
func (h *Handler) LoadBattle(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	snap, err := h.Engine.LoadBattle(c.Request.Context(), c.Param("id"), uid)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

type submitAnswerRequest struct {
	RoundNumber int    `json:"round_number" binding:"required"`
	Action      string `json:"action" binding:"required"`
	TimeMs      int    `json:"time_ms"`
	Score       int    `json:"score"`
}

// SubmitAnswer records the caller's answer for a round. Duplicates are
// accepted silently, so retrying after a flaky response is always safe.
func (h *Handler) SubmitAnswer(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req submitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "round_number and action required"})
		return
	}

	err := h.Engine.SubmitAnswer(c.Request.Context(), c.Param("id"), uid,
		req.RoundNumber, req.Action, req.TimeMs, req.Score)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// LeaveBattle abandons the battle; the opponent takes the win.
func (h *Handler) LeaveBattle(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	if err := h.Engine.LeaveBattle(c.Request.Context(), c.Param("id"), uid); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// History lists the caller's most recent battles.
func (h *Handler) History(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	battles, err := h.Engine.Battles.History(c.Request.Context(), uid, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"battles": battles})
}
