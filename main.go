package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"openduel/config"
	"openduel/handlers"
	"openduel/middleware"
	"openduel/models"
	"openduel/routes"
	"openduel/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	config.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store services.PlayerStore
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		log.Warn().Msg("using in-memory player store, data is lost on restart")
		store = services.NewMemoryStore()
	default:
		db, err := config.InitDB(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		err = db.AutoMigrate(
			&models.Player{},
			&models.PlayerMatch{},
			&models.MatchHistory{},
			&models.Friendship{},
		)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to migrate database")
		}
		store = services.NewGormStore(db)
	}

	var cache services.PlayerCache
	if cfg.RedisEnabled {
		redisClient := config.InitRedis(cfg)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("redis unreachable, player cache reads will fall through")
		}
		defer redisClient.Close()
		cache = services.NewRedisCache(redisClient, cfg.PlayerCacheTTL)
	}

	hub := services.NewHub()
	matchService := services.NewMatchService(hub, store, cache, services.MatchServiceConfig{
		MatchTimeout:  cfg.MatchTimeout,
		InviteTimeout: cfg.InviteTimeout,
		RatingK:       cfg.RatingK,
	})
	hub.SetListener(matchService)
	go hub.Run(ctx)

	sweeper, err := services.NewMatchSweeper(matchService, cfg.SweepInterval, cfg.MatchMaxAge)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create match sweeper")
	}
	sweeper.Start()

	matchHandler := handlers.NewMatchHandler(matchService)
	playerHandler := handlers.NewPlayerHandler(matchService)

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(), middleware.CORS(cfg.OriginAllowed))
	routes.SetupRoutes(router, matchHandler, playerHandler, hub, matchService, cfg.JWTSecret, cfg.OriginAllowed)

	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	if err := sweeper.Shutdown(); err != nil {
		log.Error().Err(err).Msg("sweeper shutdown failed")
	}
}
