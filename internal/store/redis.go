package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-redis/redis/v8"

	"github.com/abhisek/querywise/internal/profile"
)

const (
	redisProfileKeyPrefix = "querywise:profile:"
	redisProfileIndexKey  = "querywise:profiles"
)

// RedisConfig locates a Redis server.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// RedisProfiles stores profiles as JSON strings in Redis, with a set
// indexing every known user id.
type RedisProfiles struct {
	client *redis.Client
}

var (
	_ profile.Backend = (*RedisProfiles)(nil)
	_ profile.Lister  = (*RedisProfiles)(nil)
)

// OpenRedisProfiles connects and pings the server.
func OpenRedisProfiles(ctx context.Context, cfg RedisConfig) (*RedisProfiles, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}
	return &RedisProfiles{client: client}, nil
}

// Close closes the client.
func (r *RedisProfiles) Close() error {
	return r.client.Close()
}

func (r *RedisProfiles) Get(ctx context.Context, userID string) (*profile.Profile, error) {
	data, err := r.client.Get(ctx, redisProfileKeyPrefix+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, profile.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return decodeProfile(data)
}

func (r *RedisProfiles) Put(ctx context.Context, p *profile.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisProfileKeyPrefix+p.UserID, data, 0)
		pipe.SAdd(ctx, redisProfileIndexKey, p.UserID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// List returns every indexed profile ordered by user id. Index entries whose
// record has disappeared are skipped.
func (r *RedisProfiles) List(ctx context.Context) ([]*profile.Profile, error) {
	ids, err := r.client.SMembers(ctx, redisProfileIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list profile ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	slices.Sort(ids)

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = redisProfileKeyPrefix + id
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}

	out := make([]*profile.Profile, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		p, err := decodeProfile([]byte(s))
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
