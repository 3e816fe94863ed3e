package dbconn

import (
	"github.com/redis/go-redis/v9"

	"github.com/ordercore/saga-platform/internal/platform/config"
)

// ConnectRedis создаёт клиент Redis, используемый идемпотентностью как
// fast-path кэш перед обращением к durable хранилищу.
func ConnectRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}
