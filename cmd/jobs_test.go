//go:build !integration

package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/monitoring"
)

func TestFormatJobsList(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)
	jobs := []model.JobRecord{
		{
			ID:        "abc12345-6789-0000-0000-000000000000",
			Request:   model.LeadRequest{City: "Bengaluru", District: "Koramangala", Market: "Student Recruitment"},
			State:     model.JobDone,
			Profiles:  7,
			Published: 6,
			Fallbacks: 1,
			CreatedAt: now,
			UpdatedAt: now.Add(3 * time.Minute),
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Request:   model.LeadRequest{City: "Pune", Market: "Medical Tourism"},
			State:     model.JobDone,
			Error:     "no targets discovered",
			CreatedAt: now.Add(-time.Hour),
			UpdatedAt: now.Add(-time.Hour),
		},
	}

	var buf bytes.Buffer
	formatJobsList(&buf, jobs)

	out := buf.String()
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "PUBLISHED")
	assert.Contains(t, out, "abc12345")
	assert.NotContains(t, out, "abc12345-6789")
	assert.Contains(t, out, "Koramangala, Bengaluru")
	assert.Contains(t, out, "Student Recruitment")
	assert.Contains(t, out, "2026-03-02 09:15")
	assert.Contains(t, out, "3m0s")
	assert.Contains(t, out, "done (!)")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789-0000"))
	assert.Equal(t, "short", truncateID("short"))
}

func TestFormatJobStats(t *testing.T) {
	var buf bytes.Buffer
	formatJobStats(&buf, &monitoring.MetricsSnapshot{
		JobsTotal:     4,
		JobsDone:      3,
		JobsFailed:    1,
		Published:     18,
		Fallbacks:     2,
		FallbackRate:  0.1,
		FallbackDepth: 2,
		LookbackHours: 24,
	})

	out := buf.String()
	assert.Contains(t, out, "24h")
	assert.Contains(t, out, "Total jobs:")
	assert.Contains(t, out, "10.0%")
	assert.Contains(t, out, "2 file(s)")
}
