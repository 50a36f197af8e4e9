package cli

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/wholesale-hub/settlement/internal/testing/guard"
	"github.com/wholesale-hub/settlement/jobs"
)

func newCLI(t *testing.T) (*JobsCLI, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewJobsCLI(mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestTriggerEnqueuesKnownJobs(t *testing.T) {
	c, mr := newCLI(t)
	ctx := context.Background()

	info, err := c.Trigger(ctx, "reconcile-suppliers")
	require.NoError(t, err)
	assert.Equal(t, jobs.TaskSupplierReconcileAll, info.Type)

	info, err = c.Trigger(ctx, "recalc-supplier", "12")
	require.NoError(t, err)
	assert.Equal(t, jobs.TaskSupplierRecalc, info.Type)

	_, err = c.Trigger(ctx, jobs.TaskWalletAudit)
	require.NoError(t, err)

	info, err = c.Trigger(ctx, "idempotency-cleanup")
	require.NoError(t, err)
	assert.Equal(t, jobs.TaskIdempotencyCleanup, info.Type)

	pending, err := mr.List("asynq:{default}:pending")
	require.NoError(t, err)
	assert.Len(t, pending, 4)
}

func TestTriggerRejectsBadInput(t *testing.T) {
	c, _ := newCLI(t)
	ctx := context.Background()

	_, err := c.Trigger(ctx, "gl-integrity")
	require.Error(t, err)
	_, err = c.Trigger(ctx, "recalc-supplier")
	require.Error(t, err)
	_, err = c.Trigger(ctx, "recalc-supplier", "x")
	require.Error(t, err)

	_, err = NewJobsCLI("")
	require.Error(t, err)
}
