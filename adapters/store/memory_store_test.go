package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvalidateAndCheck(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	invalidated, err := s.IsTokenInvalidated(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, invalidated)

	require.NoError(t, s.InvalidateToken(ctx, "t1", time.Minute))

	invalidated, err = s.IsTokenInvalidated(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, invalidated)
}

func TestInvalidationLapses(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.InvalidateToken(ctx, "t1", 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)

	invalidated, err := s.IsTokenInvalidated(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, invalidated)
}
