package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultRedisMaxLen = 10000

// RedisSink pushes entries onto a capped list, newest at the head.
type RedisSink struct {
	client redis.Cmdable
	key    string
	maxLen int64
}

func NewRedisSink(client redis.Cmdable, key string, maxLen int64) *RedisSink {
	if maxLen <= 0 {
		maxLen = defaultRedisMaxLen
	}
	return &RedisSink{client: client, key: key, maxLen: maxLen}
}

func (s *RedisSink) Emit(ctx context.Context, channel, message string, fields map[string]any) error {
	payload, err := json.Marshal(newEntry(channel, message, fields))
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, s.key, payload)
		pipe.LTrim(ctx, s.key, 0, s.maxLen-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis push %s: %w", s.key, err)
	}
	return nil
}

// Recent reads up to limit entries from the head of the list. Entries that
// fail to decode are skipped.
func (s *RedisSink) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || int64(limit) > s.maxLen {
		limit = 100
	}
	items, err := s.client.LRange(ctx, s.key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis range %s: %w", s.key, err)
	}
	results := make([]Entry, 0, len(items))
	for _, raw := range items {
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			continue
		}
		results = append(results, e)
	}
	return results, nil
}
