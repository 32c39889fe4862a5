package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"openduel/services"
)

type PlayerHandler struct {
	matchService *services.MatchService
}

func NewPlayerHandler(matchService *services.MatchService) *PlayerHandler {
	return &PlayerHandler{
		matchService: matchService,
	}
}

func (h *PlayerHandler) GetPlayer(c *gin.Context) {
	player, err := h.matchService.PlayerProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, player)
}

func (h *PlayerHandler) GetMatchHistory(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = parsed
	}

	history, err := h.matchService.MatchHistory(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"matches": history})
}
