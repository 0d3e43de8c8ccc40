package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewClient(context.Background(), Config{Addr: mr.Addr()}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	assert.NoError(t, c.Healthy(context.Background()))

	mr.Close()
	assert.Error(t, c.Healthy(context.Background()))
}

func TestNewClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err := NewClient(context.Background(), Config{Addr: addr}, zap.NewNop())
	assert.Error(t, err)
}
