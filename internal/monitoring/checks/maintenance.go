package checks

import (
	"context"
	"strings"
	"time"

	"github.com/charlesng35/internhub/internal/app/maintenance"
	"github.com/charlesng35/internhub/internal/monitoring"
)

const defaultMaintenanceMaxAge = 6 * time.Hour

// JobSource reports cleanup job history.
type JobSource interface {
	Jobs() []maintenance.JobStatus
}

// Maintenance verifies that cleanup jobs keep succeeding. A job failing on
// consecutive runs marks the probe down; a job silent for longer than maxAge
// degrades it.
func Maintenance(source JobSource, maxAge time.Duration, now func() time.Time) monitoring.Check {
	if maxAge <= 0 {
		maxAge = defaultMaintenanceMaxAge
	}
	if now == nil {
		now = time.Now
	}

	return monitoring.NewCheck("maintenance", func(ctx context.Context) monitoring.ProbeResult {
		if source == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "maintenance disabled"}
		}
		jobs := source.Jobs()
		if len(jobs) == 0 {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "no maintenance runs yet"}
		}

		status := monitoring.StatusUp
		var problems []string
		current := now()
		for _, job := range jobs {
			if job.ConsecutiveFailures > 0 {
				status = monitoring.Worst(status, monitoring.StatusDown)
				problems = append(problems, job.Job+": "+job.LastError)
			}
			if !job.LastRunAt.IsZero() && current.Sub(job.LastRunAt) > maxAge {
				status = monitoring.Worst(status, monitoring.StatusDegraded)
				problems = append(problems, job.Job+": stale run "+job.LastRunAt.UTC().Format(time.RFC3339))
			}
		}

		return monitoring.ProbeResult{Status: status, Details: strings.Join(problems, "; ")}
	})
}
