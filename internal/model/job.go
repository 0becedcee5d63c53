package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// JobState is a pipeline job's position in its state machine.
type JobState string

const (
	JobDiscovering JobState = "discovering"
	JobCrawling    JobState = "crawling"
	JobEnriching   JobState = "enriching"
	JobDrafting    JobState = "drafting"
	JobPublishing  JobState = "publishing"
	JobDone        JobState = "done"
)

// Next returns the state that follows s. Done is terminal.
func (s JobState) Next() JobState {
	switch s {
	case JobDiscovering:
		return JobCrawling
	case JobCrawling:
		return JobEnriching
	case JobEnriching:
		return JobDrafting
	case JobDrafting:
		return JobPublishing
	default:
		return JobDone
	}
}

// Terminal reports whether s is Done.
func (s JobState) Terminal() bool { return s == JobDone }

// Markets accepted by the lead-gen trigger.
var Markets = []string{"Student Recruitment", "Medical Tourism"}

// ErrInvalidRequest is wrapped by all LeadRequest validation failures.
var ErrInvalidRequest = eris.New("invalid lead request")

// LeadRequest is the inbound trigger payload.
type LeadRequest struct {
	City     string `json:"city" yaml:"city"`
	District string `json:"district,omitempty" yaml:"district"`
	Market   string `json:"market" yaml:"market"`
}

// Validate trims the request and checks required fields. The market is
// normalized to its canonical spelling.
func (r *LeadRequest) Validate() error {
	r.City = strings.TrimSpace(r.City)
	r.District = strings.TrimSpace(r.District)
	r.Market = strings.TrimSpace(r.Market)

	if r.City == "" {
		return eris.Wrap(ErrInvalidRequest, "city is required")
	}
	if r.Market == "" {
		return eris.Wrap(ErrInvalidRequest, "market is required")
	}
	for _, m := range Markets {
		if strings.EqualFold(m, r.Market) {
			r.Market = m
			return nil
		}
	}
	return eris.Wrapf(ErrInvalidRequest, "market must be one of %s", strings.Join(Markets, ", "))
}

// Location renders "district, city" or just the city.
func (r LeadRequest) Location() string {
	if r.District == "" {
		return r.City
	}
	return r.District + ", " + r.City
}

// PipelineJob is one run of the pipeline. Its results are discarded once the
// job reaches Done; only logs, the job ledger and published messages remain.
type PipelineJob struct {
	ID        string      `json:"job_id"`
	Request   LeadRequest `json:"request"`
	Targets   []Target    `json:"targets"`
	StartedAt time.Time   `json:"started_at"`
	Deadline  time.Time   `json:"deadline"`
	State     JobState    `json:"state"`
}

// NewPipelineJob starts a job now with the given wall-clock budget.
func NewPipelineJob(req LeadRequest, targets []Target, budget time.Duration) *PipelineJob {
	now := time.Now().UTC()
	return &PipelineJob{
		ID:        uuid.New().String(),
		Request:   req,
		Targets:   targets,
		StartedAt: now,
		Deadline:  now.Add(budget),
		State:     JobDiscovering,
	}
}

// Remaining returns the budget left at now, never negative.
func (j *PipelineJob) Remaining(now time.Time) time.Duration {
	d := j.Deadline.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Expired reports whether the deadline has passed at now.
func (j *PipelineJob) Expired(now time.Time) bool {
	return !now.Before(j.Deadline)
}

// JobRecord is the persisted ledger entry for a job.
type JobRecord struct {
	ID        string      `json:"job_id"`
	Request   LeadRequest `json:"request"`
	State     JobState    `json:"state"`
	Targets   int         `json:"targets"`
	Profiles  int         `json:"profiles"`
	Published int         `json:"published"`
	Fallbacks int         `json:"fallbacks"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}
