package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// InventoryCache holds inventory snapshots in Redis so that hot read paths
// (the order pipeline fetches every line item) skip Postgres.
type InventoryCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewInventoryCache(addr string, ttl time.Duration) (*InventoryCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &InventoryCache{client: client, ttl: ttl}, nil
}

func (c *InventoryCache) Close() error {
	return c.client.Close()
}

func cacheKey(id uuid.UUID) string {
	return "inventory:" + id.String()
}

// Get returns (nil, nil) on a cache miss.
func (c *InventoryCache) Get(ctx context.Context, id uuid.UUID) (*Inventory, error) {
	data, err := c.client.Get(ctx, cacheKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get error: %w", err)
	}

	var inv Inventory
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached inventory: %w", err)
	}
	return &inv, nil
}

func (c *InventoryCache) Set(ctx context.Context, inv *Inventory) error {
	data, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("failed to marshal inventory: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(inv.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

func (c *InventoryCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	return c.client.Del(ctx, cacheKey(id)).Err()
}
