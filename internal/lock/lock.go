// Package lock serializes mutations per key. Cart mutations lock
// "cart:<user>" and favorite toggles lock "favorite:<user>:<product>".
package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SigNoz/storefront-go-app/internal/metrics"
)

// ErrLockTimeout is returned when a key could not be acquired within the wait bound
var ErrLockTimeout = errors.New("timed out waiting for lock")

// Locker grants exclusive access to a key until release is called.
// release is safe to call more than once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// CartKey is the lock key for a user's cart
func CartKey(userID int64) string {
	return fmt.Sprintf("cart:%d", userID)
}

// FavoriteKey is the lock key for one user/product favorite pair
func FavoriteKey(userID, productID int64) string {
	return fmt.Sprintf("favorite:%d:%d", userID, productID)
}

// Instrument records lock wait time for every acquisition
func Instrument(l Locker, m *metrics.AppMetrics) Locker {
	return &instrumented{next: l, metrics: m}
}

type instrumented struct {
	next    Locker
	metrics *metrics.AppMetrics
}

func (i *instrumented) Acquire(ctx context.Context, key string) (func(), error) {
	start := time.Now()
	release, err := i.next.Acquire(ctx, key)
	i.metrics.RecordLockWait(ctx, scope(key), start, err == nil)
	return release, err
}

func scope(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}

// waitContext bounds ctx by wait when wait is positive
func waitContext(ctx context.Context, wait time.Duration) (context.Context, context.CancelFunc) {
	if wait <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, wait)
}

// timeoutErr maps an expired wait to ErrLockTimeout and keeps caller cancellation as is
func timeoutErr(parent context.Context) error {
	if err := parent.Err(); err != nil {
		return err
	}
	return ErrLockTimeout
}
