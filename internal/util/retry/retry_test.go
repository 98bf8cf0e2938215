package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	t.Parallel()
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	t.Parallel()
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, Attempts(5), Delay(time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	t.Parallel()
	failure := errors.New("still broken")
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return failure
	}, Attempts(3), Delay(time.Millisecond))
	require.Error(t, err)
	assert.ErrorIs(t, err, failure)
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	t.Parallel()
	fatal := errors.New("bad request")
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return Permanent(fatal)
	}, Attempts(5), Delay(time.Millisecond))
	require.Error(t, err)
	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, func() error {
		return errors.New("transient")
	}, Attempts(3), Delay(time.Hour))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPermanent_NilPassthrough(t *testing.T) {
	t.Parallel()
	assert.NoError(t, Permanent(nil))
}
