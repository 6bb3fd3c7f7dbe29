package main

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

type Redis struct {
	client  *redis.Client
	channel string
}

// NewRedis returns nil when no DSN is configured.
func NewRedis(dsn, channel string) *Redis {
	if dsn == "" {
		return nil
	}
	return &Redis{client: redis.NewClient(&redis.Options{Addr: dsn}), channel: channel}
}

func (r *Redis) Publish(ctx context.Context, event Event) error {
	output, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, output).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) String() string {
	return "redis"
}
