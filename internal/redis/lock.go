package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockNotAcquired = errors.New("dentist day lock not acquired")

// Locker guards the critical section for one dentist's schedule on
// one calendar day. day is the YYYY-MM-DD form of the date.
type Locker interface {
	WithDentistDay(ctx context.Context, dentistID uuid.UUID, day string, fn func(ctx context.Context) error) error
}

type redisDayLocker struct {
	client   *redis.Client
	ttl      time.Duration
	wait     time.Duration
	retryGap time.Duration
}

// NewRedisDayLocker creates a locker keyed per dentist per day. A
// caller that cannot take the lock within wait gets
// ErrLockNotAcquired, which the service surfaces as a retryable
// concurrency conflict rather than a business rejection.
func NewRedisDayLocker(client *redis.Client, ttl, wait time.Duration) Locker {
	return &redisDayLocker{
		client:   client,
		ttl:      ttl,
		wait:     wait,
		retryGap: 25 * time.Millisecond,
	}
}

func (l *redisDayLocker) WithDentistDay(ctx context.Context, dentistID uuid.UUID, day string, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:dentist:%s:%s", dentistID, day)
	token := uuid.NewString()

	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire dentist day lock: %w", err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return ErrLockNotAcquired
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.retryGap):
		}
	}

	defer func() {
		_ = l.release(ctx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisDayLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release dentist day lock: %w", err)
	}
	return nil
}
