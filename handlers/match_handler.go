package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"

	"openduel/middleware"
	"openduel/services"
)

type MatchHandler struct {
	matchService *services.MatchService
}

func NewMatchHandler(matchService *services.MatchService) *MatchHandler {
	return &MatchHandler{
		matchService: matchService,
	}
}

// StatusUnchanged reports a request that was already in effect.
const StatusUnchanged = "unchanged"

type SubmitMoveRequest struct {
	Mask         *int `json:"mask" binding:"required"`
	OpponentMask *int `json:"opponentMask" binding:"required"`
	IsFriend     bool `json:"isFriend"`
}

func (h *MatchHandler) FindMatch(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	result, err := h.matchService.FindMatch(identity)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *MatchHandler) CancelSearch(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	cancelled := h.matchService.CancelSearch(identity.PlayerID)
	c.JSON(http.StatusOK, gin.H{"message": "Search cancelled", "cancelled": cancelled})
}

func (h *MatchHandler) SubmitMove(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	opponentID := c.Param("opponentId")
	if opponentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Opponent ID required"})
		return
	}

	var req SubmitMoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.matchService.SubmitMove(c.Request.Context(), services.MoveRequest{
		PlayerID:     identity.PlayerID,
		OpponentID:   opponentID,
		Mask:         *req.Mask,
		OpponentMask: *req.OpponentMask,
		Friendly:     req.IsFriend,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Move sent successfully", "status": result.Status, "matchId": result.MatchID, "rating": result.Rating})
}

func (h *MatchHandler) CurrentMatch(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	match, err := h.matchService.CurrentMatch(identity.PlayerID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, match)
}

func (h *MatchHandler) InviteFriend(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	invite, err := h.matchService.InviteFriend(c.Request.Context(), identity, c.Param("friendId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, invite)
}

func (h *MatchHandler) AcceptInvite(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	match, err := h.matchService.AcceptInvite(identity, c.Param("friendId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, match)
}

func (h *MatchHandler) DeclineInvite(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	if err := h.matchService.DeclineInvite(identity, c.Param("friendId")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Invite declined"})
}

// respondError maps service errors onto HTTP responses.
func respondError(c *gin.Context, err error) {
	switch {
	case eris.Is(err, services.ErrInvalidMask),
		eris.Is(err, services.ErrSelfMatch),
		eris.Is(err, services.ErrNotFriends):
		c.JSON(http.StatusBadRequest, gin.H{"error": eris.Cause(err).Error()})
	case eris.Is(err, services.ErrPeerOffline):
		c.JSON(http.StatusBadRequest, gin.H{"error": "One or both players are offline"})
	case eris.Is(err, services.ErrMatchNotFound),
		eris.Is(err, services.ErrNotFound),
		eris.Is(err, services.ErrPlayerNotFound),
		eris.Is(err, services.ErrInviteNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": eris.Cause(err).Error()})
	case eris.Is(err, services.ErrAlreadyQueued),
		eris.Is(err, services.ErrAlreadyInvited),
		eris.Is(err, services.ErrDuplicateActiveMatch):
		// The request is already in effect; nothing changed.
		c.JSON(http.StatusOK, gin.H{"status": StatusUnchanged, "message": eris.Cause(err).Error()})
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
