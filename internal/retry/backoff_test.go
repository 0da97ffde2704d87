package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Multiplier: 2.0,
	}
}

func TestDoSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), "op", func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), "op", func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsRetries(t *testing.T) {
	calls := 0
	wantErr := errors.New("persistent")
	err := Do(context.Background(), fastConfig(), "op", func() error {
		calls++
		return wantErr
	})

	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 4, calls) // first try plus three retries
}

func TestDoStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, fastConfig(), "op", func() error {
		calls++
		cancel()
		return errors.New("failing")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDoReturnsPermanentErrorImmediately(t *testing.T) {
	calls := 0
	cause := errors.New("queue does not exist")
	err := Do(context.Background(), fastConfig(), "op", func() error {
		calls++
		return Permanent(cause)
	})

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, calls)
}

func TestConfigIsZero(t *testing.T) {
	assert.True(t, Config{}.IsZero())
	assert.False(t, Config{MaxRetries: 0, BaseDelay: time.Millisecond}.IsZero(), "explicit zero-retry config is not unset")
	assert.False(t, DefaultConfig().IsZero())
}

func TestDelayGrowsAndCaps(t *testing.T) {
	cfg := Config{BaseDelay: time.Second, MaxDelay: 4 * time.Second, Multiplier: 2.0}

	assert.Equal(t, 1*time.Second, Delay(cfg, 0))
	assert.Equal(t, 2*time.Second, Delay(cfg, 1))
	assert.Equal(t, 4*time.Second, Delay(cfg, 2))
	assert.Equal(t, 4*time.Second, Delay(cfg, 5)) // capped
}

func TestDelayJitterBounded(t *testing.T) {
	cfg := Config{BaseDelay: time.Second, MaxDelay: 10 * time.Second, Multiplier: 2.0, Jitter: true}
	for i := 0; i < 100; i++ {
		d := Delay(cfg, 1)
		assert.GreaterOrEqual(t, d, 1800*time.Millisecond)
		assert.LessOrEqual(t, d, 2200*time.Millisecond)
	}
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(errors.New("ThrottlingException: rate limit")))
	assert.True(t, IsTransient(errors.New("dial tcp: connection refused")))
	assert.False(t, IsTransient(errors.New("AWS.SimpleQueueService.NonExistentQueue")))
	assert.False(t, IsTransient(errors.New("access denied")))
	assert.False(t, IsTransient(nil))
}
