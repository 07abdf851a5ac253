//go:build integration

package allocation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vaultd/internal/allocation"
	"vaultd/pkg/testutil/containers"
)

func TestRedisIdempotency(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	rc := containers.NewRedisContainer(t)
	defer func() { _ = rc.Container.Terminate(ctx) }()

	keys := allocation.NewRedisIdempotency(rc.Client, time.Minute)

	fresh, err := keys.Reserve(ctx, "batch-1")
	require.NoError(t, err)
	require.True(t, fresh)

	fresh, err = keys.Reserve(ctx, "batch-1")
	require.NoError(t, err)
	require.False(t, fresh)

	fresh, err = keys.Reserve(ctx, "batch-2")
	require.NoError(t, err)
	require.True(t, fresh)

	require.NoError(t, rc.FlushAll(ctx))
	fresh, err = keys.Reserve(ctx, "batch-1")
	require.NoError(t, err)
	require.True(t, fresh)
}
