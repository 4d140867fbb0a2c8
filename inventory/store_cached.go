package main

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/paging"
)

// CachedStore wraps PostgresStore with a cache-aside read path. Writes go to
// Postgres first and invalidate the cache entry afterwards; a failed
// invalidation only costs staleness for one TTL.
type CachedStore struct {
	store  *PostgresStore
	cache  *InventoryCache
	logger *slog.Logger
}

func NewCachedStore(store *PostgresStore, cache *InventoryCache, logger *slog.Logger) *CachedStore {
	return &CachedStore{store: store, cache: cache, logger: logger}
}

func (s *CachedStore) Get(ctx context.Context, id uuid.UUID) (*Inventory, error) {
	cached, err := s.cache.Get(ctx, id)
	if err != nil {
		s.logger.Warn("cache read failed, falling back to postgres", slog.Any("error", err))
	} else if cached != nil {
		return cached, nil
	}

	inv, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, inv); err != nil {
		s.logger.Warn("cache populate failed",
			slog.String("inventory_id", id.String()),
			slog.Any("error", err),
		)
	}
	return inv, nil
}

// List bypasses the cache: paginated scans are cold-path admin reads.
func (s *CachedStore) List(ctx context.Context, p paging.Params) ([]*Inventory, int, error) {
	return s.store.List(ctx, p)
}

func (s *CachedStore) Reserve(ctx context.Context, id uuid.UUID, delta int) (*Inventory, error) {
	inv, err := s.store.Reserve(ctx, id, delta)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	return inv, nil
}

func (s *CachedStore) CommitOrderReservation(ctx context.Context, eventID, eventType, payload string, items []ReservedItem) error {
	if err := s.store.CommitOrderReservation(ctx, eventID, eventType, payload, items); err != nil {
		return err
	}
	for _, item := range items {
		s.invalidate(ctx, item.InventoryID)
	}
	return nil
}

func (s *CachedStore) invalidate(ctx context.Context, id uuid.UUID) {
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.Warn("cache invalidation failed",
			slog.String("inventory_id", id.String()),
			slog.Any("error", err),
		)
	}
}
