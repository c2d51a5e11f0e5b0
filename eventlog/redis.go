package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"monopolis-server/protocol"
)

const keyPrefix = "monopolis:room:"

// Redis keeps each room's events in a capped list so any relay instance can
// replay them.
type Redis struct {
	client   *redis.Client
	capacity int64
	ttl      time.Duration
}

// NewRedis connects to redisURL. If redisURL is empty, NewRedis returns
// (nil, nil) and the caller should fall back to Memory.
func NewRedis(ctx context.Context, redisURL string, capacity int, ttl time.Duration) (*Redis, error) {
	if redisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("connected to Redis", "tag", "eventlog")
	return &Redis{client: client, capacity: int64(capacity), ttl: ttl}, nil
}

func roomKey(roomID string) string {
	return keyPrefix + roomID + ":events"
}

func (r *Redis) Append(ctx context.Context, roomID string, ev protocol.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	key := roomKey(roomID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		if r.capacity > 0 {
			pipe.LTrim(ctx, key, -r.capacity, -1)
		}
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	return err
}

func (r *Redis) Since(ctx context.Context, roomID string, afterSeq uint64) ([]protocol.Event, error) {
	raw, err := r.client.LRange(ctx, roomKey(roomID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]protocol.Event, 0, len(raw))
	for _, s := range raw {
		var ev protocol.Event
		if err := json.Unmarshal([]byte(s), &ev); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		if ev.Seq > afterSeq {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (r *Redis) Delete(ctx context.Context, roomID string) error {
	return r.client.Del(ctx, roomKey(roomID)).Err()
}

// Close closes the client.
func (r *Redis) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}
