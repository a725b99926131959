package backend_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/izure1/mvcc-api/backend"
	"github.com/izure1/mvcc-api/engine"
)

func TestMemoryReadWriteDeleteExists(t *testing.T) {
	ctx := context.Background()
	m := backend.NewMemory[string, string]()

	_, err := m.Read(ctx, "k")
	require.ErrorIs(t, err, engine.ErrBackendKeyNotFound)
	ok, err := m.Exists(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, m.Write(ctx, "k", "v1"))
	ok, err = m.Exists(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	v, err := m.Read(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v1", v)
	require.Equal(t, 1, m.Len())

	require.NoError(t, m.Delete(ctx, "k"))
	ok, err = m.Exists(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 0, m.Len())
}

func TestMemoryDeleteOnMissingKeyIsNoOp(t *testing.T) {
	ctx := context.Background()
	m := backend.NewMemory[string, int]()
	require.NoError(t, m.Delete(ctx, "absent"))
}
