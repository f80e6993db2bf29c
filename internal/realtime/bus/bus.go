package bus

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/lumen-backend/internal/platform/envutil"
	"github.com/yungbote/lumen-backend/internal/platform/logger"
	"github.com/yungbote/lumen-backend/internal/realtime"
)

// Bus carries realtime messages between replicas. Every replica runs one
// forwarder that hands each message to its local hub and job runner.
type Bus interface {
	Publish(ctx context.Context, msg realtime.Message) error
	StartForwarder(ctx context.Context, onMsg func(m realtime.Message)) error
	Close() error
}

// NewFromEnv picks the implementation named by REALTIME_BUS (memory|redis).
// With no explicit choice, REDIS_ADDR selects redis.
func NewFromEnv(log *logger.Logger) (Bus, error) {
	kind := strings.ToLower(envutil.String("REALTIME_BUS", ""))
	if kind == "" {
		if envutil.String("REDIS_ADDR", "") != "" {
			kind = "redis"
		} else {
			kind = "memory"
		}
	}
	switch kind {
	case "redis":
		return NewRedisBus(log, RedisOptions{
			Addr:     envutil.String("REDIS_ADDR", ""),
			Password: envutil.String("REDIS_PASSWORD", ""),
			DB:       envutil.Int("REDIS_DB", 0),
			Channel:  envutil.String("REDIS_CHANNEL", "lumen-realtime"),
		})
	case "memory":
		return NewMemoryBus(log, envutil.Int("REALTIME_MEMORY_BUS_BUFFER", 1024)), nil
	default:
		return nil, fmt.Errorf("unknown REALTIME_BUS=%q (allowed: memory, redis)", kind)
	}
}
