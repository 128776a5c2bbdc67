package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "intake:session:"

// RedisStore keeps session state in Redis so it survives process restarts.
// Each user is one key, so Redis partitions the data naturally.
type RedisStore struct {
	client  *redis.Client
	idleTTL time.Duration
}

func NewRedisStore(ctx context.Context, redisURL string, idleTTL time.Duration) (*RedisStore, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL is required for the redis session backend")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &RedisStore{client: client, idleTTL: idleTTL}, nil
}

func redisKey(userID int64) string {
	return redisKeyPrefix + strconv.FormatInt(userID, 10)
}

func (r *RedisStore) Get(ctx context.Context, userID int64) (*State, error) {
	raw, err := r.client.Get(ctx, redisKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	var s State
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	s.Values = normalizeNumbers(s.Values)
	s.Previous = normalizeNumbers(s.Previous)
	return &s, nil
}

func (r *RedisStore) Put(ctx context.Context, s *State) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	ttl := r.idleTTL
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, redisKey(s.UserID), data, ttl).Err(); err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

func (r *RedisStore) Remove(ctx context.Context, userID int64) (bool, error) {
	n, err := r.client.Del(ctx, redisKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("remove session: %w", err)
	}
	return n > 0, nil
}

func (r *RedisStore) Count(ctx context.Context) (int, error) {
	n := 0
	iter := r.client.Scan(ctx, 0, redisKeyPrefix+"*", 256).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

// normalizeNumbers turns decoded json.Number values back into int64 so a
// state read from Redis compares equal to the one written.
func normalizeNumbers(in map[string]any) map[string]any {
	for k, v := range in {
		if n, ok := v.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				in[k] = i
				continue
			}
			if f, err := n.Float64(); err == nil {
				in[k] = f
			}
		}
	}
	return in
}
