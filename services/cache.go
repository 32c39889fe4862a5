package services

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"openduel/models"
)

const DefaultPlayerCacheTTL = time.Hour

// PlayerCache holds player snapshots in front of the store.
type PlayerCache interface {
	GetPlayer(ctx context.Context, playerID string) (*models.Player, bool, error)
	SetPlayer(ctx context.Context, player *models.Player) error
	Invalidate(ctx context.Context, playerIDs ...string) error
}

type RedisCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultPlayerCacheTTL
	}
	return &RedisCache{redis: client, ttl: ttl}
}

func playerKey(playerID string) string {
	return "player:" + playerID
}

func (c *RedisCache) GetPlayer(ctx context.Context, playerID string) (*models.Player, bool, error) {
	data, err := c.redis.Get(ctx, playerKey(playerID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, eris.Wrapf(err, "failed to read cached player %s", playerID)
	}

	var player models.Player
	if err := json.Unmarshal(data, &player); err != nil {
		return nil, false, eris.Wrapf(err, "failed to decode cached player %s", playerID)
	}
	return &player, true, nil
}

func (c *RedisCache) SetPlayer(ctx context.Context, player *models.Player) error {
	data, err := json.Marshal(player)
	if err != nil {
		return eris.Wrap(err, "failed to encode player")
	}
	if err := c.redis.Set(ctx, playerKey(player.ID), data, c.ttl).Err(); err != nil {
		return eris.Wrapf(err, "failed to cache player %s", player.ID)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, playerIDs ...string) error {
	if len(playerIDs) == 0 {
		return nil
	}
	keys := make([]string, len(playerIDs))
	for i, id := range playerIDs {
		keys[i] = playerKey(id)
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return eris.Wrap(err, "failed to invalidate player cache")
	}
	return nil
}
