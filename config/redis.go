package config

import (
	"github.com/redis/go-redis/v9"
)

// NewRedisClient builds a redis client from REDIS_ADDR / REDIS_PASSWORD /
// REDIS_DB environment variables.
func NewRedisClient() *redis.Client {
	addr := getEnv("REDIS_ADDR", "localhost:6379")
	password := getEnv("REDIS_PASSWORD", "")
	db := getEnvInt("REDIS_DB", 0)

	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}
