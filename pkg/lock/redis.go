package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// Client is the subset of the go-redis client used by Redis.
type Client interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// Redis is a Locker shared by every replica pointing at the same redis. The
// key carries a TTL so a crashed owner cannot hold it forever.
type Redis struct {
	client Client
	key    string
	ttl    time.Duration
}

// Ensure Redis implements Locker interface.
var _ Locker = (*Redis)(nil)

// NewRedis creates a Redis locker on key.
func NewRedis(client Client, key string, ttl time.Duration) *Redis {
	return &Redis{
		client: client,
		key:    key,
		ttl:    ttl,
	}
}

// NewRedisClient creates a go-redis client and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

// Acquire sets the key with NX and a fresh token.
func (r *Redis) Acquire(ctx context.Context) (Lease, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, r.key, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire redis lock %s: %w", r.key, err)
	}
	if !ok {
		return nil, ErrHeld
	}
	return &redisLease{r: r, token: token}, nil
}

type redisLease struct {
	r     *Redis
	token string
}

func (l *redisLease) Release(ctx context.Context) error {
	if err := l.r.client.Eval(ctx, releaseScript, []string{l.r.key}, l.token).Err(); err != nil {
		return fmt.Errorf("failed to release redis lock %s: %w", l.r.key, err)
	}
	return nil
}
