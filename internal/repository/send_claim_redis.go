package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ConnectRedis accepts either a redis:// URL or a host:port address.
func ConnectRedis(_ context.Context, redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// RedisSendClaims stores claims as SET NX keys with a TTL.
type RedisSendClaims struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSendClaims(client *redis.Client, ttl time.Duration) *RedisSendClaims {
	return &RedisSendClaims{client: client, ttl: ttl}
}

func (s *RedisSendClaims) Claim(ctx context.Context, prospectID string, stepIndex int, owner string) (bool, error) {
	ok, err := s.client.SetNX(ctx, claimKey(prospectID, stepIndex), owner, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim send: %w", err)
	}
	return ok, nil
}

func (s *RedisSendClaims) Release(ctx context.Context, prospectID string, stepIndex int) error {
	return s.client.Del(ctx, claimKey(prospectID, stepIndex)).Err()
}

var _ SendClaims = (*RedisSendClaims)(nil)
