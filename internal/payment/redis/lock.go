package redis

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis serializes callback processing per payment session. The gateway can
// deliver the IPN and the browser return for the same order at nearly the
// same moment; whichever handler grabs the lock settles, the other sees the
// already-settled session.
type Redis struct {
	Client *redis.Client
	Logger *log.Logger
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{
		Client: client,
		Logger: log.Default(),
	}
}

// getSessionLockDuration returns the callback lock duration from environment variables or the default value
func (r *Redis) getSessionLockDuration() time.Duration {
	// Default lock TTL is 30 seconds
	defaultDuration := 30 * time.Second

	lockTTLStr := os.Getenv("PAYMENT_LOCK_TTL_SECONDS")
	if lockTTLStr == "" {
		return defaultDuration
	}

	lockTTLSec, err := strconv.Atoi(lockTTLStr)
	if err != nil {
		r.Logger.Println("REDIS: Invalid PAYMENT_LOCK_TTL_SECONDS value '" + lockTTLStr + "', using default 30 seconds")
		return defaultDuration
	}

	return time.Duration(lockTTLSec) * time.Second
}

// LockSession takes the callback lock for an order. Returns false when
// another handler already holds it.
func (r *Redis) LockSession(ctx context.Context, orderID, holder string) (bool, error) {
	key := "payment_lock:" + orderID
	ok, err := r.Client.SetNX(ctx, key, holder, r.getSessionLockDuration()).Result()
	return ok, err
}

// UnlockSession releases the callback lock, but only if this holder owns it.
// A lock that expired and was re-taken by someone else stays put.
func (r *Redis) UnlockSession(ctx context.Context, orderID, holder string) error {
	key := fmt.Sprintf("payment_lock:%s", orderID)
	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already released
	}
	if err != nil {
		return err
	}
	if val == holder {
		_, err := r.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}
