package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"car-scraper/utils"
)

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

const releaseTimeout = 5 * time.Second

// Redis is a Locker backed by a single Redis key set with NX and a TTL.
// The TTL bounds how long a crashed holder can block other processes.
type Redis struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	logger *utils.Logger
}

// NewRedis creates a Redis locker on key.
func NewRedis(client *redis.Client, key string, ttl time.Duration, logger *utils.Logger) *Redis {
	return &Redis{client: client, key: key, ttl: ttl, logger: logger}
}

func (r *Redis) TryLock(ctx context.Context) (func(), error) {
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, r.key, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("lock: redis set %s: %w", r.key, err)
	}
	if !ok {
		return nil, ErrLocked
	}

	r.logger.Debug("[lock] Acquired %s (token %s, ttl %v)", r.key, token, r.ttl)

	return sync.OnceFunc(func() {
		// The caller's context may already be cancelled.
		relCtx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()

		n, err := releaseScript.Run(relCtx, r.client, []string{r.key}, token).Int()
		switch {
		case err != nil:
			r.logger.Warn("[lock] Release %s: %v", r.key, err)
		case n == 0:
			r.logger.Warn("[lock] %s expired before release", r.key)
		default:
			r.logger.Debug("[lock] Released %s", r.key)
		}
	}), nil
}
