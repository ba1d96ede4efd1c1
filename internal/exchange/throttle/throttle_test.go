package throttle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucket_AllowDrainsCapacity(t *testing.T) {
	b := NewBucket(3, 1)

	assert.True(t, b.Allow())
	assert.True(t, b.Allow())
	assert.True(t, b.Allow())
	assert.False(t, b.Allow())
}

func TestBucket_WaitReturnsImmediatelyWithTokens(t *testing.T) {
	b := NewBucket(1, 1)

	require.NoError(t, b.Wait(context.Background()))
}

func TestBucket_WaitHonoursCancellation(t *testing.T) {
	b := NewBucket(1, 1)
	require.True(t, b.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, b.Wait(ctx), context.Canceled)
}

func TestNewBucket_SanitizesArguments(t *testing.T) {
	b := NewBucket(0, -5)

	assert.True(t, b.Allow())
	assert.False(t, b.Allow())
}
