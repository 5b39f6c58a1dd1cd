package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// unlockScript deletes the key only if it still holds our token, so an
// expired lock that was taken over by another holder is left alone.
var unlockScript = goredis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

type LockerConfig struct {
	Prefix       string        // key namespace, e.g. "lock:review:"
	TTL          time.Duration // lock expiry if the holder dies
	PollInterval time.Duration // wait between acquisition attempts
}

// Locker serializes work per key across processes with SET NX PX.
type Locker struct {
	rdb    *goredis.Client
	cfg    LockerConfig
	logger *zap.Logger
}

func NewLocker(rdb *goredis.Client, cfg LockerConfig, logger *zap.Logger) *Locker {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 25 * time.Millisecond
	}
	return &Locker{rdb: rdb, cfg: cfg, logger: logger}
}

// Lock blocks until key is acquired or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := l.cfg.Prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.cfg.PollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.rdb.SetNX(ctx, redisKey, token, l.cfg.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return func() { l.unlock(redisKey, token) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire lock %s: %w", key, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *Locker) unlock(redisKey, token string) {
	// The request context may already be cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := unlockScript.Run(ctx, l.rdb, []string{redisKey}, token).Err(); err != nil {
		l.logger.Warn("failed to release lock",
			zap.String("key", redisKey),
			zap.Error(err),
		)
	}
}
