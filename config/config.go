package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	BindAddress string `env:"BIND_ADDRESS" envDefault:"localhost"`
	DBHost      string `env:"DB_HOST" envDefault:"localhost"`
	DBPort      string `env:"DB_PORT" envDefault:"5432"`
	DBUser      string `env:"DB_USER" envDefault:"openduel"`
	DBPassword  string `env:"DB_PASSWORD" envDefault:"openduel123"`
	DBName      string `env:"DB_NAME" envDefault:"openduel"`
	RedisHost   string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort   string `env:"REDIS_PORT" envDefault:"6379"`
	RedisPass   string `env:"REDIS_PASSWORD" envDefault:""`
	JWTSecret   string `env:"JWT_SECRET" envDefault:"your-secret-key-change-in-production"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// StoreDriver selects player persistence: "postgres" or "memory".
	StoreDriver  string `env:"STORE_DRIVER" envDefault:"postgres"`
	RedisEnabled bool   `env:"REDIS_ENABLED" envDefault:"true"`

	// Matchmaking
	MatchTimeout   time.Duration `env:"MATCH_TIMEOUT" envDefault:"30s"`
	InviteTimeout  time.Duration `env:"INVITE_TIMEOUT" envDefault:"60s"`
	RatingK        float64       `env:"RATING_K" envDefault:"30"`
	PlayerCacheTTL time.Duration `env:"PLAYER_CACHE_TTL" envDefault:"1h"`
	MatchMaxAge    time.Duration `env:"MATCH_MAX_AGE" envDefault:"30m"`
	SweepInterval  time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`

	ClientOrigins []string `env:"CLIENT_ORIGINS" envSeparator:"," envDefault:"*"`
}

// Load parses the process environment. A .env file, if any, must already be loaded.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, eris.Wrap(err, "failed to parse config")
	}
	if cfg.MatchTimeout <= 0 {
		return nil, eris.New("MATCH_TIMEOUT must be positive")
	}
	switch cfg.StoreDriver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return nil, eris.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	if cfg.RatingK <= 0 {
		return nil, eris.New("RATING_K must be positive")
	}
	return &cfg, nil
}

func (c *Config) ListenAddr() string {
	return c.BindAddress + ":" + c.Port
}

// OriginAllowed reports whether a browser origin may open a websocket.
func (c *Config) OriginAllowed(origin string) bool {
	for _, allowed := range c.ClientOrigins {
		allowed = strings.TrimSpace(allowed)
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// InitLogger configures the global zerolog logger.
func InitLogger(level string) {
	switch strings.ToLower(level) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Logger()
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, eris.Wrap(err, "failed to connect to database")
	}

	return db, nil
}

func InitRedis(cfg *Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPass,
		DB:       0, // use default DB
	})

	return client
}
