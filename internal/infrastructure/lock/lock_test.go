package lock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNormalize(t *testing.T) {
	got := normalize([]string{"account:b", "account:a", "account:b"})
	assert.Equal(t, []string{"account:a", "account:b"}, got)
}

func TestLocal_MutualExclusion(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(ctx, "account:a", "account:b")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
}

func TestLocal_DuplicateKeys(t *testing.T) {
	l := NewLocal()
	release, err := l.Acquire(context.Background(), "k", "k")
	require.NoError(t, err)
	release()
	release()

	release, err = l.Acquire(context.Background(), "k")
	require.NoError(t, err)
	release()
}

func TestLocal_ContextCancelled(t *testing.T) {
	l := NewLocal()
	release, err := l.Acquire(context.Background(), "a")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = l.Acquire(ctx, "b", "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// "b" was released when acquiring "a" failed.
	releaseB, err := l.Acquire(context.Background(), "b")
	require.NoError(t, err)
	releaseB()
}

func TestLocal_ReleasesIdleSlots(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		release, err := l.Acquire(ctx, fmt.Sprintf("account:%d", i), "invoice:REF:card:3:2024")
		require.NoError(t, err)
		release()
	}
	assert.Zero(t, l.size())

	release, err := l.Acquire(ctx, "a")
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(waitCtx, "a", "b")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, l.size())

	release()
	assert.Zero(t, l.size())
}

func TestLocal_WaiterKeepsSlot(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "a")
	require.NoError(t, err)

	acquired := make(chan func())
	go func() {
		r, err := l.Acquire(ctx, "a")
		if err == nil {
			acquired <- r
		}
	}()

	require.Eventually(t, func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		return l.slots["a"] != nil && l.slots["a"].refs == 2
	}, time.Second, time.Millisecond)

	release()
	select {
	case r := <-acquired:
		r()
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the key")
	}
	assert.Zero(t, l.size())
}

func setupRedis(t *testing.T) *redis.Client {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedis_AcquireRelease(t *testing.T) {
	client := setupRedis(t)
	l := NewRedis(client, zap.NewNop(), WithTries(1))
	ctx := context.Background()

	release, err := l.Acquire(ctx, "account:1", "account:2")
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "account:2")
	assert.Error(t, err, "second holder must not get the lock")

	release()

	release, err = l.Acquire(ctx, "account:2")
	require.NoError(t, err)
	release()
}

func TestRedis_PartialFailureReleasesHeldKeys(t *testing.T) {
	client := setupRedis(t)
	l := NewRedis(client, zap.NewNop(), WithTries(1))
	ctx := context.Background()

	releaseB, err := l.Acquire(ctx, "b")
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "a", "b")
	require.Error(t, err)

	releaseA, err := l.Acquire(ctx, "a")
	require.NoError(t, err, "a must have been released after the failure on b")
	releaseA()
	releaseB()
}

func TestRedis_WaitsForHolder(t *testing.T) {
	client := setupRedis(t)
	l := NewRedis(client, zap.NewNop(), WithTries(50), WithRetryDelay(5*time.Millisecond))
	ctx := context.Background()

	release, err := l.Acquire(ctx, "k")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		r, err := l.Acquire(ctx, "k")
		if err == nil {
			r()
		}
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	release()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never acquired the lock")
	}
}
