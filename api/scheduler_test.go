package api

import (
	"context"
	"strings"
	"testing"

	"github.com/aneupi/finance-engine/balances"
	"github.com/aneupi/finance-engine/earnings"
	"github.com/aneupi/finance-engine/generic"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestScheduler(env *testEnv) *SyncScheduler {
	s := NewSyncScheduler([]*generic.Service{env.balances, env.earnings}, env.metrics, zap.NewNop())
	s.clock = fixedClock
	return s
}

func TestSyncScheduler_RunNowMaterialisesCurrentYear(t *testing.T) {
	// GIVEN: An empty database with one approved contribution in March
	env := newTestEnv(t)
	env.addContribution(t, "c1", 2024, 3, "50", generic.StatusAprobado)
	scheduler := newTestScheduler(env)

	// WHEN: Running the sync
	require.NoError(t, scheduler.RunNow(context.Background()))

	// THEN: Both kinds have all twelve months of the current year
	ctx := context.Background()
	for _, kind := range []generic.KindID{balances.KindID, earnings.KindID} {
		records, err := env.store.ListRecords(ctx, kind, 2024)
		require.NoError(t, err)
		assert.Len(t, records, 12, "kind %s", kind)
	}

	march, err := env.store.GetRecord(ctx, balances.KindID, 2024, 3)
	require.NoError(t, err)
	require.NotNil(t, march)
	assert.Equal(t, "50.00", march.Value(balances.FieldContributions).StringFixed(2))

	expected := `
# HELP aneupi_scheduler_runs_total Scheduled year syncs by outcome.
# TYPE aneupi_scheduler_runs_total counter
aneupi_scheduler_runs_total{kind="balances",result="ok"} 1
aneupi_scheduler_runs_total{kind="earnings",result="ok"} 1
`
	require.NoError(t, testutil.GatherAndCompare(env.metrics.Registry, strings.NewReader(expected), "aneupi_scheduler_runs_total"))
}

func TestSyncScheduler_RunNowReportsStoreFailure(t *testing.T) {
	env := newTestEnv(t)
	scheduler := newTestScheduler(env)
	env.store.Close()

	err := scheduler.RunNow(context.Background())

	assert.Error(t, err)
}

func TestSyncScheduler_StartStop(t *testing.T) {
	env := newTestEnv(t)
	scheduler := newTestScheduler(env)

	assert.Error(t, scheduler.Start("not a schedule"))

	require.NoError(t, scheduler.Start("0 3 * * *"))
	assert.Error(t, scheduler.Start("0 3 * * *"), "second start")

	scheduler.Stop()
	scheduler.Stop()
}
