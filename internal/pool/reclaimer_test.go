package pool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastReclaim() Config {
	cfg := pooled()
	cfg.CleanupInterval = 10 * time.Millisecond
	return cfg
}

func TestReclaimer_StopsWhenRegistryEmpties(t *testing.T) {
	opener := &stubOpener{}
	r := newTestRegistry(t, opener)
	cfg := fastReclaim()

	assert.Equal(t, ReclaimerStopped, r.ReclaimerState())

	conn, err := r.GetConnection(context.Background(), oracleEP, cred("scott", "tiger"), &cfg)
	require.NoError(t, err)
	assert.Equal(t, ReclaimerRunning, r.ReclaimerState())

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return r.PoolCount() == 0 && r.ReclaimerState() == ReclaimerStopped
	}, time.Second, 5*time.Millisecond)
	assert.True(t, opener.source(0).isClosed())

	// The next pooled request restarts it.
	conn, err = r.GetConnection(context.Background(), oracleEP, cred("scott", "tiger"), nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, ReclaimerRunning, r.ReclaimerState())
	opens, _ := opener.counts()
	assert.Equal(t, 2, opens)
}

func TestReclaimer_KeepsSourcesWithConnections(t *testing.T) {
	opener := &stubOpener{}
	r := newTestRegistry(t, opener)
	cfg := fastReclaim()

	conn, err := r.GetConnection(context.Background(), oracleEP, cred("scott", "tiger"), &cfg)
	require.NoError(t, err)
	defer conn.Close()

	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, 1, r.PoolCount())
	assert.Equal(t, ReclaimerRunning, r.ReclaimerState())
	assert.False(t, opener.source(0).isClosed())
}

func TestReclaimer_StartIsIdempotent(t *testing.T) {
	r := newTestRegistry(t, &stubOpener{})

	r.StartReclaimer()
	r.StartReclaimer()
	assert.Equal(t, ReclaimerRunning, r.ReclaimerState())

	// An empty registry stops it on the first wake.
	r.SetConfig(fastReclaim())
	require.NoError(t, r.Shutdown())
	assert.Equal(t, ReclaimerStopped, r.ReclaimerState())

	r.StartReclaimer()
	require.Eventually(t, func() bool {
		return r.ReclaimerState() == ReclaimerStopped
	}, time.Second, 5*time.Millisecond)
}

func TestReclaimerState_String(t *testing.T) {
	assert.Equal(t, "running", ReclaimerRunning.String())
	assert.Equal(t, "stopped", ReclaimerStopped.String())
}
