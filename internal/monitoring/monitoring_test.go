package monitoring_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/internhub/internal/app/maintenance"
	testutil "github.com/charlesng35/internhub/internal/database/testutil"
	"github.com/charlesng35/internhub/internal/monitoring"
	"github.com/charlesng35/internhub/internal/monitoring/checks"
)

func TestHealthManagerEvaluate(t *testing.T) {
	t.Parallel()

	manager := monitoring.NewHealthManager()
	manager.RegisterReadiness(monitoring.NewCheck("database", func(ctx context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	}))
	manager.RegisterReadiness(monitoring.NewCheck("redis", func(ctx context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "connection refused"}
	}))

	report := manager.EvaluateReadiness(context.Background())
	require.False(t, report.Success)
	require.Equal(t, monitoring.StatusDown, report.Status)
	require.Len(t, report.Checks, 2)
	require.Equal(t, "redis", report.Checks[1].Component)

	live := manager.EvaluateLiveness(context.Background())
	require.True(t, live.Success)
	require.Empty(t, live.Checks)
}

func TestHealthManagerRecoversPanics(t *testing.T) {
	t.Parallel()

	manager := monitoring.NewHealthManager()
	manager.RegisterLiveness(monitoring.NewCheck("boom", func(context.Context) monitoring.ProbeResult {
		panic("probe exploded")
	}))

	report := manager.EvaluateLiveness(context.Background())
	require.Equal(t, monitoring.StatusDown, report.Status)
	require.Equal(t, "probe exploded", report.Checks[0].Details)
	require.Equal(t, "boom", report.Checks[0].Component)
}

func TestResultFromErrorDegradesOnTimeout(t *testing.T) {
	t.Parallel()

	require.Equal(t, monitoring.StatusUp, monitoring.ResultFromError("db", nil, time.Second).Status)
	require.Equal(t, monitoring.StatusDegraded, monitoring.ResultFromError("db", context.DeadlineExceeded, 0).Status)
	require.Equal(t, monitoring.StatusDown, monitoring.ResultFromError("db", errors.New("refused"), 0).Status)
}

func TestDatabaseCheck(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	result := checks.Database(db, time.Second).Run(context.Background())
	require.Equal(t, monitoring.StatusUp, result.Status)

	require.Equal(t, monitoring.StatusDown, checks.Database(nil, 0).Run(context.Background()).Status)
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestRedisCheck(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	require.Equal(t, monitoring.StatusUp, checks.Redis(nil, false, 0).Run(ctx).Status)
	require.Equal(t, monitoring.StatusDegraded, checks.Redis(nil, true, 0).Run(ctx).Status)
	require.Equal(t, monitoring.StatusUp, checks.Redis(stubPinger{}, true, 0).Run(ctx).Status)
	require.Equal(t, monitoring.StatusDown, checks.Redis(stubPinger{err: errors.New("refused")}, true, 0).Run(ctx).Status)
}

type stubJobs []maintenance.JobStatus

func (s stubJobs) Jobs() []maintenance.JobStatus { return s }

func TestMaintenanceCheck(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	ctx := context.Background()

	require.Equal(t, monitoring.StatusUp, checks.Maintenance(stubJobs{}, 0, clock).Run(ctx).Status)

	healthy := stubJobs{{Job: maintenance.JobSessionCleanup, TotalRuns: 3, LastRunAt: now.Add(-time.Minute)}}
	require.Equal(t, monitoring.StatusUp, checks.Maintenance(healthy, 0, clock).Run(ctx).Status)

	stale := stubJobs{{Job: maintenance.JobCachePurge, TotalRuns: 1, LastRunAt: now.Add(-7 * time.Hour)}}
	require.Equal(t, monitoring.StatusDegraded, checks.Maintenance(stale, 0, clock).Run(ctx).Status)

	failing := stubJobs{
		{Job: maintenance.JobSessionCleanup, TotalRuns: 2, ConsecutiveFailures: 2, LastError: "timeout", LastRunAt: now},
		{Job: maintenance.JobCachePurge, TotalRuns: 1, LastRunAt: now.Add(-7 * time.Hour)},
	}
	result := checks.Maintenance(failing, 0, clock).Run(ctx)
	require.Equal(t, monitoring.StatusDown, result.Status)
	require.Contains(t, result.Details, "session_cleanup: timeout")
}
