package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mizan/internal/shared/logger"
)

const (
	lastTierKeyPrefix = "entitlement:last_tier:"
	// Last resolved tier is a best-guess hint, not state; let stale hints age out.
	lastTierTTL = 90 * 24 * time.Hour
)

// RedisTierStore durably remembers the last resolved tier name per user. It
// is written through on every successful entitlement commit and read only
// once, at store construction, to seed the pre-network tier guess.
type RedisTierStore struct {
	client *redis.Client
	logger logger.Interface
}

func NewRedisTierStore(client *redis.Client, logger logger.Interface) *RedisTierStore {
	return &RedisTierStore{
		client: client,
		logger: logger,
	}
}

func (s *RedisTierStore) key(userID string) string {
	return lastTierKeyPrefix + userID
}

// GetLastTier returns the cached tier name, or "" when none is cached.
func (s *RedisTierStore) GetLastTier(ctx context.Context, userID string) (string, error) {
	value, err := s.client.Get(ctx, s.key(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read last tier from cache: %w", err)
	}
	return value, nil
}

// SetLastTier stores the resolved tier name.
func (s *RedisTierStore) SetLastTier(ctx context.Context, userID string, tierName string) error {
	if err := s.client.Set(ctx, s.key(userID), tierName, lastTierTTL).Err(); err != nil {
		return fmt.Errorf("failed to write last tier to cache: %w", err)
	}
	s.logger.Debugw("last tier cached", "user_id", userID, "tier", tierName)
	return nil
}
