package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hassan-kurwa-buruhani/crs-dashboard/internal/repository"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/database"
	apperrors "github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/errors"
)

// KeyPrefix namespaces every session entry.
const KeyPrefix = "crs:session:"

// Store implements repository.CredentialStore using Redis.
type Store struct {
	client     *redis.Client
	refreshTTL time.Duration
}

// NewStore creates a Redis-backed credential store. A positive refreshTTL
// expires the refresh token entry; other entries never expire.
func NewStore(client *redis.Client, refreshTTL time.Duration) *Store {
	return &Store{
		client:     client,
		refreshTTL: refreshTTL,
	}
}

// Get retrieves the value for key.
func (s *Store) Get(ctx context.Context, key string) (v string, err error) {
	ctx, end := database.TraceCommand(ctx, "GET", KeyPrefix+key)
	defer func() {
		// A miss is an answer, not a failure.
		if errors.Is(err, repository.ErrNotFound) {
			end(nil)
			return
		}
		end(err)
	}()

	v, err = s.client.Get(ctx, KeyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", apperrors.NotFound("credential", key)
		}
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, nil
}

// Set stores value under key.
func (s *Store) Set(ctx context.Context, key, value string) (err error) {
	ctx, end := database.TraceCommand(ctx, "SET", KeyPrefix+key)
	defer func() { end(err) }()

	var ttl time.Duration
	if key == repository.KeyRefreshToken && s.refreshTTL > 0 {
		ttl = s.refreshTTL
	}
	if err = s.client.Set(ctx, KeyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes keys in one round trip.
func (s *Store) Delete(ctx context.Context, keys ...string) (err error) {
	if len(keys) == 0 {
		return nil
	}
	ctx, end := database.TraceCommand(ctx, "DEL", KeyPrefix+"*")
	defer func() { end(err) }()

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = KeyPrefix + k
	}
	if err = s.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redis del session: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
