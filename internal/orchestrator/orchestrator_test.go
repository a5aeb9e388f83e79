package orchestrator

import (
	"context"
	"errors"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoRetriesUntilSuccess(t *testing.T) {
	var calls int32
	policy := RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2.0}
	err := Do(context.Background(), policy, rand.New(rand.NewSource(1)), func(ctx context.Context) error {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls)
}

func TestDoExhaustsRetriesAndWrapsLastError(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1.0}
	err := Do(context.Background(), policy, rand.New(rand.NewSource(1)), func(ctx context.Context) error {
		return errors.New("permanent")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permanent")
}

func TestDoHonorsContextCancellation(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 5, InitialDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 1.0}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	err := Do(ctx, policy, nil, func(ctx context.Context) error {
		return errors.New("retryable")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Minute, MaxConcurrentRequests: 1})
	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return errors.New("fail") })
	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return errors.New("fail") })
	assert.Equal(t, StateOpen, cb.State())

	err := cb.Execute(context.Background(), func(ctx context.Context) error { return nil })
	var openErr *CircuitBreakerOpenError
	assert.ErrorAs(t, err, &openErr)
}

func TestCircuitBreakerRegistryReusesSameBreakerPerKey(t *testing.T) {
	reg := NewBreakerRegistry(DefaultCircuitBreakerConfig())
	a := reg.Get("binance")
	b := reg.Get("binance")
	assert.Same(t, a, b)
}

func TestPoolRejectsConcurrentSameRunID(t *testing.T) {
	pool := NewPool(2)
	block := make(chan struct{})
	_, _, err := pool.Submit(context.Background(), "run-1", func(ctx context.Context) error {
		<-block
		return nil
	})
	require.NoError(t, err)

	_, _, err = pool.Submit(context.Background(), "run-1", func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrRunAlreadyActive)
	close(block)
}

func TestPoolCapacityLimitsConcurrency(t *testing.T) {
	pool := NewPool(1)
	release := make(chan struct{})
	_, done1, err := pool.Submit(context.Background(), "a", func(ctx context.Context) error {
		<-release
		return nil
	})
	require.NoError(t, err)
	assert.True(t, pool.IsActive("a"))

	started := make(chan struct{})
	_, done2, err := pool.Submit(context.Background(), "b", func(ctx context.Context) error {
		close(started)
		return nil
	})
	require.NoError(t, err)

	select {
	case <-started:
		t.Fatal("second job should not start before the first releases its slot")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	<-done1
	<-done2
}

func TestRunManagerResumeFailsForUnknownRun(t *testing.T) {
	mgr := NewRunManager(2)
	_, _, err := mgr.Resume(context.Background(), "never-submitted", func(ctx context.Context, log *StageLog) error { return nil })
	assert.Error(t, err)
}

func TestRunManagerResumeAppendsResumedLine(t *testing.T) {
	mgr := NewRunManager(2)
	_, done, err := mgr.Submit(context.Background(), "run-1", func(ctx context.Context, log *StageLog) error {
		log.Append("ingest", "done")
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, <-done)

	_, done2, err := mgr.Resume(context.Background(), "run-1", func(ctx context.Context, log *StageLog) error { return nil })
	require.NoError(t, err)
	require.NoError(t, <-done2)

	entries := mgr.StageLog("run-1").Entries()
	var sawResumed bool
	for _, e := range entries {
		if e.Message == "resumed" {
			sawResumed = true
		}
	}
	assert.True(t, sawResumed)
}

func TestFanOutReturnsFirstError(t *testing.T) {
	err := FanOut(context.Background(), 2, []int{1, 2, 3}, func(ctx context.Context, item int) error {
		if item == 2 {
			return errors.New("boom")
		}
		return nil
	})
	assert.Error(t, err)
}

func TestFanOutSucceedsWhenAllItemsSucceed(t *testing.T) {
	var count int32
	err := FanOut(context.Background(), 2, []int{1, 2, 3}, func(ctx context.Context, item int) error {
		atomic.AddInt32(&count, 1)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), count)
}
