package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen/internal/model"
)

func TestCollector_Collect(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-time.Hour)
	jobs := &mockJobs{jobs: []model.JobRecord{
		{ID: "1", State: model.JobDone, Profiles: 5, Published: 4, Fallbacks: 1, CreatedAt: recent},
		{ID: "2", State: model.JobDone, Profiles: 3, Published: 3, CreatedAt: recent},
		{ID: "3", State: model.JobDone, Error: "no targets discovered", CreatedAt: recent},
		{ID: "4", State: model.JobCrawling, CreatedAt: recent},
		// Partial results are not a failure.
		{ID: "5", State: model.JobDone, Profiles: 2, Published: 2, Error: "crawl x: timeout", CreatedAt: recent},
		// Outside the window.
		{ID: "6", State: model.JobDone, Error: "old", CreatedAt: now.Add(-48 * time.Hour)},
	}}

	c := NewCollector(jobs, &mockQueue{depth: 7})
	c.now = func() time.Time { return now }

	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 5, snap.JobsTotal)
	assert.Equal(t, 3, snap.JobsDone)
	assert.Equal(t, 1, snap.JobsFailed)
	assert.Equal(t, 1, snap.JobsRunning)
	assert.InDelta(t, 0.25, snap.JobsFailRate, 0.001)
	assert.Equal(t, 10, snap.ProfilesTotal)
	assert.Equal(t, 9, snap.Published)
	assert.Equal(t, 1, snap.Fallbacks)
	assert.InDelta(t, 0.1, snap.FallbackRate, 0.001)
	assert.Equal(t, 7, snap.FallbackDepth)
	assert.Equal(t, 24, snap.LookbackHours)
	assert.Equal(t, now, snap.CollectedAt)
}

func TestCollector_Empty(t *testing.T) {
	snap, err := NewCollector(&mockJobs{}, nil).Collect(context.Background(), 24)
	require.NoError(t, err)
	assert.Zero(t, snap.JobsTotal)
	assert.Zero(t, snap.JobsFailRate)
	assert.Zero(t, snap.FallbackRate)
	assert.Zero(t, snap.FallbackDepth)
}

func TestCollector_Errors(t *testing.T) {
	_, err := NewCollector(&mockJobs{err: errBoom}, nil).Collect(context.Background(), 24)
	assert.ErrorContains(t, err, "monitoring: list jobs")

	_, err = NewCollector(&mockJobs{}, &mockQueue{err: errBoom}).Collect(context.Background(), 24)
	assert.ErrorContains(t, err, "monitoring: list fallback queue")
}
