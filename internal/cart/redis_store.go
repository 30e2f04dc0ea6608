package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// RedisStore keeps each cart under one key as a JSON array of lines.
// Carts have no expiry; they live until cleared.
type RedisStore struct {
	client *redis.Client
}

func (s *RedisStore) Get(ctx context.Context, cartID string) ([]Line, error) {
	data, err := s.client.Get(ctx, storeKey(cartID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return []Line{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var lines []Line
	if err := json.Unmarshal(data, &lines); err != nil {
		// corrupt persisted state degrades to an empty cart so the
		// storefront stays usable
		log.Warn().Str("cart_id", cartID).Err(err).Msg("discarding unreadable cart")
		return []Line{}, nil
	}
	return lines, nil
}

func (s *RedisStore) Save(ctx context.Context, cartID string, lines []Line) error {
	if lines == nil {
		lines = []Line{}
	}
	data, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	if err := s.client.Set(ctx, storeKey(cartID), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, cartID string) error {
	if err := s.client.Del(ctx, storeKey(cartID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func storeKey(cartID string) string {
	return fmt.Sprintf("cart:%s", cartID)
}
