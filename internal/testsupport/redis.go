package testsupport

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redis"
)

// RedisContainer holds references to the ephemeral Redis instance.
type RedisContainer struct {
	Container testcontainers.Container
	// Client is a plain go-redis client; testsupport must not import cache.
	Client *goredis.Client
	// Endpoint is the host:port the container is reachable on.
	Endpoint string
}

// Terminate cleans up the container and closes the client.
func (c *RedisContainer) Terminate(ctx context.Context) error {
	_ = c.Client.Close()
	return c.Container.Terminate(ctx)
}

// StartRedisContainer spins up a Redis 7-alpine container.
func StartRedisContainer(ctx context.Context) (*RedisContainer, error) {
	redisContainer, err := redis.Run(ctx, "redis:7-alpine")
	if err != nil {
		return nil, fmt.Errorf("failed to start redis container: %w", err)
	}

	endpoint, err := redisContainer.PortEndpoint(ctx, "6379/tcp", "")
	if err != nil {
		return nil, fmt.Errorf("failed to get redis endpoint: %w", err)
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:        endpoint,
		PoolSize:    10,
		DialTimeout: 5 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		_ = redisContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisContainer{
		Container: redisContainer,
		Client:    client,
		Endpoint:  endpoint,
	}, nil
}
