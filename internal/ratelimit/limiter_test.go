package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCurrentInterval_Progression(t *testing.T) {
	l := New(500*time.Millisecond, 5*time.Second)

	assert.Equal(t, 500*time.Millisecond, l.CurrentInterval())

	l.OnRateLimit()
	assert.Equal(t, 1*time.Second, l.CurrentInterval())

	l.OnRateLimit()
	assert.Equal(t, 2*time.Second, l.CurrentInterval())

	l.OnRateLimit()
	assert.Equal(t, 4*time.Second, l.CurrentInterval())

	l.OnRateLimit()
	assert.Equal(t, 5*time.Second, l.CurrentInterval(), "capped at max interval")

	l.OnSuccess()
	assert.Equal(t, 4*time.Second, l.CurrentInterval())
}

func TestOnSuccess_ClampedAtZero(t *testing.T) {
	l := New(500*time.Millisecond, 5*time.Second)
	l.OnSuccess()
	l.OnSuccess()
	assert.Equal(t, 500*time.Millisecond, l.CurrentInterval())
}

func TestReset(t *testing.T) {
	l := New(500*time.Millisecond, 5*time.Second)
	l.OnRateLimit()
	l.OnRateLimit()
	l.Reset()
	assert.Equal(t, 500*time.Millisecond, l.CurrentInterval())
}

func TestAcquire_WaitsCurrentInterval(t *testing.T) {
	l := New(10*time.Millisecond, 100*time.Millisecond)
	start := time.Now()
	err := l.Acquire(context.Background())
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestAcquire_RespectsCancellation(t *testing.T) {
	l := New(time.Second, 5*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScenario_RateLimitBackoffThenSuccess(t *testing.T) {
	// Two successive 429s followed by one success: a single on_success only
	// decrements the hit counter by one, never jumping straight to base.
	l := New(500*time.Millisecond, 5*time.Second)
	assert.Equal(t, 500*time.Millisecond, l.CurrentInterval())
	l.OnRateLimit()
	assert.Equal(t, 1*time.Second, l.CurrentInterval())
	l.OnRateLimit()
	assert.Equal(t, 2*time.Second, l.CurrentInterval())
	l.OnSuccess()
	assert.Equal(t, 1*time.Second, l.CurrentInterval())
}
