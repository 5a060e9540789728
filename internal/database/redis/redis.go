package redis

import (
	"context"
	"fmt"
	"time"

	"monitoring-service/internal/config"

	"github.com/redis/go-redis/v9"
)

const connectTimeout = 5 * time.Second

// Client holds the connection the pipeline job queue lives on.
type Client struct {
	client *redis.Client
}

func options(cfg config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// NewRedisClient fails when the queue store does not answer within connectTimeout.
func NewRedisClient(cfg config.RedisConfig) (*Client, error) {
	client := redis.NewClient(options(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("job queue store unreachable at %s: %w", client.Options().Addr, err)
	}
	return &Client{client: client}, nil
}

// Redis exposes the go-redis handle for the queue implementation.
func (c *Client) Redis() *redis.Client {
	return c.client
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.client.Close()
}
