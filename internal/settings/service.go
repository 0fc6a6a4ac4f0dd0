package settings

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKey = "settings:inventory"

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	GetInventory(ctx context.Context) (Inventory, error)
	UpdateInventory(ctx context.Context, in UpdateInput) error
}

// Service reads and updates inventory settings with a redis read-through
// cache. Cache failures degrade to direct reads and are only logged.
type Service struct {
	repo   RepositoryPort
	cache  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewService builds Service. The cache client may be nil.
func NewService(repo RepositoryPort, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// Inventory returns the current inventory configuration.
func (s *Service) Inventory(ctx context.Context) (Inventory, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, cacheKey).Bytes()
		if err == nil {
			var inv Inventory
			if err := json.Unmarshal(raw, &inv); err == nil && inv.Method.Valid() {
				return inv, nil
			}
		} else if !errors.Is(err, redis.Nil) && s.logger != nil {
			s.logger.Warn("settings cache read", slog.Any("error", err))
		}
	}

	inv, err := s.repo.GetInventory(ctx)
	if err != nil {
		return Inventory{}, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(inv); err == nil {
			if err := s.cache.Set(ctx, cacheKey, raw, s.ttl).Err(); err != nil && s.logger != nil {
				s.logger.Warn("settings cache write", slog.Any("error", err))
			}
		}
	}
	return inv, nil
}

// Update changes the inventory configuration and invalidates the cache.
func (s *Service) Update(ctx context.Context, in UpdateInput) error {
	if err := in.Validate(); err != nil {
		return err
	}
	if err := s.repo.UpdateInventory(ctx, in); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Del(ctx, cacheKey).Err(); err != nil && s.logger != nil {
			s.logger.Warn("settings cache invalidate", slog.Any("error", err))
		}
	}
	return nil
}
