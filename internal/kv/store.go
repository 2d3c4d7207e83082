// Package kv wraps Redis with the TTL-bounded record operations used by
// ingress and workers: idempotency records, notification status, user
// preference cache, rate-limit counters, and worker-side idempotency markers.
package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ndidit/notifyhub/internal/dtos"
)

type Store struct {
	client *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{client: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (s *Store) Close() error { return s.client.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }

func requestKey(requestID string) string { return "request:" + requestID }
func notificationKey(id string) string   { return "notification:" + id }
func userIndexKey(userID string) string  { return "user_notifications:" + userID }
func userCacheKey(userID string) string  { return "user:" + userID }
func rateLimitKey(identifier string) string { return "ratelimit:" + identifier }
func idempotencyKey(channel, requestID string) string {
	return fmt.Sprintf("idempotency:%s:%s", channel, requestID)
}

// GetIdempotentNotificationID returns the notification_id previously stored
// for request_id, or "" if none exists.
func (s *Store) GetIdempotentNotificationID(ctx context.Context, requestID string) (string, error) {
	val, err := s.client.Get(ctx, requestKey(requestID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// ReserveIdempotency atomically claims request_id for notificationID via
// SETNX. If another caller already claimed it, reserved is false and
// existingID holds the winner's notification_id.
func (s *Store) ReserveIdempotency(ctx context.Context, requestID, notificationID string, ttl time.Duration) (reserved bool, existingID string, err error) {
	ok, err := s.client.SetNX(ctx, requestKey(requestID), notificationID, ttl).Result()
	if err != nil {
		return false, "", err
	}
	if ok {
		return true, "", nil
	}
	existing, err := s.client.Get(ctx, requestKey(requestID)).Result()
	if err != nil {
		return false, "", err
	}
	return false, existing, nil
}

func (s *Store) PutNotificationRecord(ctx context.Context, rec *dtos.NotificationRecord, ttl time.Duration) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, notificationKey(rec.NotificationID), body, ttl).Err()
}

func (s *Store) GetNotificationRecord(ctx context.Context, id string) (*dtos.NotificationRecord, error) {
	val, err := s.client.Get(ctx, notificationKey(id)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec dtos.NotificationRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// AppendUserIndex pushes a notification id onto the front of the user's
// recent-notifications list and refreshes its TTL.
func (s *Store) AppendUserIndex(ctx context.Context, userID, notificationID string, ttl time.Duration) error {
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, userIndexKey(userID), notificationID)
	pipe.Expire(ctx, userIndexKey(userID), ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) GetUserIndex(ctx context.Context, userID string, offset, limit int64) ([]string, error) {
	return s.client.LRange(ctx, userIndexKey(userID), offset, offset+limit-1).Result()
}

func (s *Store) UserIndexLen(ctx context.Context, userID string) (int64, error) {
	return s.client.LLen(ctx, userIndexKey(userID)).Result()
}

// CacheUser stores the user directory lookup result for the configured TTL.
func (s *Store) CacheUser(ctx context.Context, userID string, data *dtos.UserDirectoryData, ttl time.Duration) error {
	body, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, userCacheKey(userID), body, ttl).Err()
}

func (s *Store) GetCachedUser(ctx context.Context, userID string) (*dtos.UserDirectoryData, error) {
	val, err := s.client.Get(ctx, userCacheKey(userID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var data dtos.UserDirectoryData
	if err := json.Unmarshal([]byte(val), &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Incr bumps the rolling rate-limit counter for identifier, setting a window
// expiry only on the first increment.
func (s *Store) Incr(ctx context.Context, identifier string, window time.Duration) (int64, error) {
	key := rateLimitKey(identifier)
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}

func (s *Store) TTL(ctx context.Context, identifier string) (time.Duration, error) {
	return s.client.TTL(ctx, rateLimitKey(identifier)).Result()
}

// MarkWorkerIdempotent records that a (channel, request_id) delivery
// attempt concluded terminally.
func (s *Store) MarkWorkerIdempotent(ctx context.Context, channel, requestID string, ttl time.Duration) error {
	return s.client.Set(ctx, idempotencyKey(channel, requestID), "1", ttl).Err()
}

func (s *Store) IsWorkerIdempotent(ctx context.Context, channel, requestID string) (bool, error) {
	n, err := s.client.Exists(ctx, idempotencyKey(channel, requestID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Get reads a cached value at key, or "" with ok=false on miss.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}
