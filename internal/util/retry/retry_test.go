package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithExponentialBackoffSucceedsFirstAttempt(t *testing.T) {
	t.Parallel()
	attempts := 0

	err := WithExponentialBackoff(context.Background(), func() error {
		attempts++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestWithExponentialBackoffRecoversAfterRetries(t *testing.T) {
	t.Parallel()
	attempts := 0

	err := WithExponentialBackoff(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}, WithInitialDelay(time.Millisecond))

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithExponentialBackoffExhaustsRetries(t *testing.T) {
	t.Parallel()
	attempts := 0
	boom := errors.New("persistent error")

	err := WithExponentialBackoff(context.Background(), func() error {
		attempts++
		return boom
	}, WithMaxRetries(2), WithInitialDelay(time.Millisecond))

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, attempts)
}

func TestWithExponentialBackoffStopsOnContextCancel(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	err := WithExponentialBackoff(ctx, func() error {
		attempts++
		cancel()
		return errors.New("keep trying")
	}, WithInitialDelay(time.Hour))

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestWithExponentialBackoffStopsOnFatal(t *testing.T) {
	t.Parallel()
	attempts := 0
	boom := errors.New("bad credentials")

	err := WithExponentialBackoff(context.Background(), func() error {
		attempts++
		return Fatal(boom)
	}, WithInitialDelay(time.Millisecond))

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, attempts)
}

func TestWithExponentialBackoffCapsDelay(t *testing.T) {
	t.Parallel()
	attempts := 0
	start := time.Now()

	_ = WithExponentialBackoff(context.Background(), func() error {
		attempts++
		return errors.New("again")
	},
		WithMaxRetries(4),
		WithInitialDelay(time.Millisecond),
		WithMaxDelay(2*time.Millisecond),
		WithMultiplier(10),
	)

	assert.Equal(t, 5, attempts)
	// 4 capped waits of at most 2ms each stay well under a second.
	assert.Less(t, time.Since(start), time.Second)
}

func TestFatalWrapping(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Fatal(nil))

	boom := errors.New("boom")
	wrapped := Fatal(boom)
	assert.True(t, IsFatal(wrapped))
	assert.ErrorIs(t, wrapped, boom)

	assert.False(t, IsFatal(boom))
	assert.False(t, IsFatal(nil))
}
