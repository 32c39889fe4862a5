package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"openduel/handlers"
	"openduel/middleware"
	"openduel/services"
)

func SetupRoutes(
	router *gin.Engine,
	matchHandler *handlers.MatchHandler,
	playerHandler *handlers.PlayerHandler,
	hub *services.Hub,
	matchService *services.MatchService,
	jwtSecret string,
	originAllowed func(origin string) bool,
) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || originAllowed(origin)
		},
	}

	api := router.Group("/api")
	api.Use(middleware.AuthMiddleware(jwtSecret))
	{
		match := api.Group("/match")
		{
			match.POST("/find", matchHandler.FindMatch)
			match.POST("/cancel", matchHandler.CancelSearch)
			match.POST("/move/:opponentId", matchHandler.SubmitMove)
			match.GET("/current", matchHandler.CurrentMatch)
		}

		invites := api.Group("/invites")
		{
			invites.POST("/:friendId", matchHandler.InviteFriend)
			invites.POST("/:friendId/accept", matchHandler.AcceptInvite)
			invites.POST("/:friendId/decline", matchHandler.DeclineInvite)
		}

		players := api.Group("/players")
		{
			players.GET("/:id", playerHandler.GetPlayer)
			players.GET("/:id/history", playerHandler.GetMatchHistory)
		}
	}

	// Presence: one live socket per authenticated player.
	router.GET("/ws", middleware.AuthMiddleware(jwtSecret), func(c *gin.Context) {
		identity, ok := middleware.CurrentIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
			return
		}

		if err := matchService.Connect(c.Request.Context(), identity); err != nil {
			log.Error().Err(err).Str("player_id", identity.PlayerID).Msg("failed to record player")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register player"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade has already written the HTTP error.
			log.Warn().Err(err).Str("player_id", identity.PlayerID).Msg("websocket upgrade failed")
			return
		}

		log.Info().Str("player_id", identity.PlayerID).Msg("websocket connection established")
		hub.RegisterClient(conn, identity)
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "online": len(hub.OnlinePlayers())})
	})
}
