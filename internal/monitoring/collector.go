// Package monitoring watches the job ledger and the fallback queue and
// raises alerts when lead delivery degrades.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/publish"
	"github.com/sells-group/leadgen/internal/store"
)

// MetricsSnapshot holds a point-in-time view of pipeline health.
type MetricsSnapshot struct {
	// Job metrics (within lookback window).
	JobsTotal     int     `json:"jobs_total"`
	JobsDone      int     `json:"jobs_done"`
	JobsFailed    int     `json:"jobs_failed"`
	JobsRunning   int     `json:"jobs_running"`
	JobsFailRate  float64 `json:"jobs_fail_rate"`
	ProfilesTotal int     `json:"profiles_total"`

	// Delivery metrics (within lookback window).
	Published    int     `json:"published"`
	Fallbacks    int     `json:"fallbacks"`
	FallbackRate float64 `json:"fallback_rate"`

	// Files waiting in the fallback queue.
	FallbackDepth int `json:"fallback_depth"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// JobLister abstracts the store method needed by the collector.
type JobLister interface {
	ListJobs(ctx context.Context, filter store.JobFilter) ([]model.JobRecord, error)
}

// QueueLister abstracts the fallback queue method needed by the collector.
type QueueLister interface {
	List() ([]publish.FallbackRecord, error)
}

// Collector gathers metrics from the job ledger and the fallback queue.
type Collector struct {
	jobs  JobLister
	queue QueueLister
	now   func() time.Time
}

// NewCollector creates a new metrics collector. queue may be nil.
func NewCollector(jobs JobLister, queue QueueLister) *Collector {
	return &Collector{jobs: jobs, queue: queue, now: time.Now}
}

// Collect gathers a snapshot of metrics over the given lookback window.
// A job counts as failed when it finished with an error and published
// nothing.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	jobs, err := c.jobs.ListJobs(ctx, store.JobFilter{Limit: 10000})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list jobs")
	}

	for _, j := range jobs {
		if j.CreatedAt.Before(cutoff) {
			continue
		}
		snap.JobsTotal++
		snap.ProfilesTotal += j.Profiles
		snap.Published += j.Published
		snap.Fallbacks += j.Fallbacks

		switch {
		case !j.State.Terminal():
			snap.JobsRunning++
		case j.Error != "" && j.Published+j.Fallbacks == 0:
			snap.JobsFailed++
		default:
			snap.JobsDone++
		}
	}

	if finished := snap.JobsDone + snap.JobsFailed; finished > 0 {
		snap.JobsFailRate = float64(snap.JobsFailed) / float64(finished)
	}
	if delivered := snap.Published + snap.Fallbacks; delivered > 0 {
		snap.FallbackRate = float64(snap.Fallbacks) / float64(delivered)
	}

	if c.queue != nil {
		records, err := c.queue.List()
		if err != nil {
			return nil, eris.Wrap(err, "monitoring: list fallback queue")
		}
		snap.FallbackDepth = len(records)
	}

	return snap, nil
}
