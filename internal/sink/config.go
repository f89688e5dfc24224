package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/GoPolymarket/apilogs/internal/config"
	"github.com/redis/go-redis/v9"
)

// Emitter is the method set every sink implements.
type Emitter interface {
	Emit(ctx context.Context, channel, message string, fields map[string]any) error
}

// Deps carries the shared clients sinks are built on.
type Deps struct {
	Redis    redis.Cmdable
	Producer Producer
}

// FromConfig builds the sink for one channel.
func FromConfig(channel string, cfg config.SinkConfig, deps Deps) (Emitter, error) {
	switch cfg.Type {
	case config.SinkLog:
		return NewLogSink(cfg.Output)
	case config.SinkMemory:
		return NewMemorySink(cfg.Size), nil
	case config.SinkWebSocket:
		return NewWebSocketSink(), nil
	case config.SinkRedis:
		if deps.Redis == nil {
			return nil, errors.New("redis sink: no redis client configured")
		}
		key := cfg.Key
		if key == "" {
			key = channel
		}
		return NewRedisSink(deps.Redis, key, cfg.MaxLen), nil
	case config.SinkKafka:
		if deps.Producer == nil {
			return nil, errors.New("kafka sink: no kafka brokers configured")
		}
		return NewKafkaSink(deps.Producer, cfg.Topic), nil
	}
	return nil, fmt.Errorf("unknown sink type %q", cfg.Type)
}
