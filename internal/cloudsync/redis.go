package cloudsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRemote stores each record as a JSON string under
// <prefix>:itinerary:<userID>.
type RedisRemote struct {
	client *redis.Client
	prefix string
}

// DialRedis connects and pings the server.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		MaxRetries:   3,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

func NewRedisRemote(client *redis.Client, prefix string) *RedisRemote {
	if prefix == "" {
		prefix = "tripcal"
	}
	return &RedisRemote{client: client, prefix: prefix}
}

func (r *RedisRemote) key(parts ...string) string {
	var sb strings.Builder
	sb.WriteString(r.prefix)
	for _, p := range parts {
		sb.WriteByte(':')
		sb.WriteString(p)
	}
	return sb.String()
}

func (r *RedisRemote) Load(ctx context.Context, userID string) (Record, error) {
	raw, err := r.client.Get(ctx, r.key("itinerary", userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrNoRecord
	}
	if err != nil {
		return Record{}, err
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, fmt.Errorf("decode record for %s: %w", userID, err)
	}
	if rec.Data != nil {
		rec.Data.Normalize()
	}
	return rec, nil
}

func (r *RedisRemote) Save(ctx context.Context, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key("itinerary", rec.UserID), raw, 0).Err()
}
