// Package store persists the job ledger and the crawl cache.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen/internal/model"
)

// ErrNotFound is wrapped by lookups of missing jobs.
var ErrNotFound = eris.New("not found")

// JobFilter specifies criteria for listing jobs.
type JobFilter struct {
	State  model.JobState `json:"state,omitempty"`
	City   string         `json:"city,omitempty"`
	Limit  int            `json:"limit,omitempty"`
	Offset int            `json:"offset,omitempty"`
}

// Store defines the persistence interface for pipeline jobs.
type Store interface {
	// Jobs
	CreateJob(ctx context.Context, job *model.PipelineJob) error
	UpdateJobState(ctx context.Context, jobID string, state model.JobState) error
	FinishJob(ctx context.Context, rec model.JobRecord) error
	GetJob(ctx context.Context, jobID string) (*model.JobRecord, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]model.JobRecord, error)

	// Crawl cache
	GetCachedCrawl(ctx context.Context, siteURL string) (*model.CrawlCache, error)
	SetCachedCrawl(ctx context.Context, siteURL string, pages []model.CrawledPage, ttl time.Duration) error
	DeleteExpiredCrawls(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

func listLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}
