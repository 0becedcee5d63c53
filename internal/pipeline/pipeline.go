// Package pipeline runs one lead-gen job through its stages: discovery,
// crawling, enrichment, drafting and publishing. A job is bounded by its
// deadline; when the deadline passes at a stage boundary the job moves
// straight to Done and keeps whatever results exist.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/consolidate"
	"github.com/sells-group/leadgen/internal/crawl"
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/publish"
	"github.com/sells-group/leadgen/internal/structured"
)

// DefaultConcurrency bounds the targets crawled at once.
const DefaultConcurrency = 5

// Crawler crawls one target. It never fails; see crawl.Crawler.
type Crawler interface {
	Crawl(ctx context.Context, target model.Target) crawl.Result
}

// ContactExtractor finds contact candidates in crawled text.
type ContactExtractor interface {
	Extract(ownerID, sourceURL, text string) []model.ContactCandidate
}

// Discoverer finds targets for a request.
type Discoverer interface {
	Discover(ctx context.Context, req model.LeadRequest) ([]model.Target, error)
}

// Publisher delivers lead messages, falling back to disk on failure.
type Publisher interface {
	Deliver(ctx context.Context, msg model.LeadMessage) (publish.Delivery, error)
	Flush(ctx context.Context) error
}

// JobRecorder receives job state changes. The store implements it.
type JobRecorder interface {
	UpdateJobState(ctx context.Context, jobID string, state model.JobState) error
	FinishJob(ctx context.Context, rec model.JobRecord) error
}

// Deps are the Runner's collaborators. Discoverer, Adapter and Recorder
// may be nil.
type Deps struct {
	Crawler    Crawler
	Extractor  ContactExtractor
	Discoverer Discoverer
	Adapter    *structured.Adapter
	Publisher  Publisher
	Recorder   JobRecorder
}

// Options configures a Runner.
type Options struct {
	Concurrency        int
	SourceAgent        string
	DefaultCountryCode string
}

// Outcome summarizes a finished job.
type Outcome struct {
	JobID         string                  `json:"job_id"`
	FinalState    model.JobState          `json:"final_state"`
	Profiles      []*model.PartnerProfile `json:"profiles"`
	Published     int                     `json:"published"`
	FallbackFiles []string                `json:"fallback_files,omitempty"`
	Errors        []string                `json:"errors,omitempty"`
	TimedOut      bool                    `json:"timed_out,omitempty"`
}

func (o *Outcome) addError(format string, args ...any) {
	o.Errors = append(o.Errors, fmt.Sprintf(format, args...))
}

// Runner executes pipeline jobs. A Runner is safe for concurrent use.
type Runner struct {
	deps Deps
	opts Options
	now  func() time.Time
}

// New creates a Runner. Crawler, Extractor and Publisher are required.
func New(deps Deps, opts Options) (*Runner, error) {
	if deps.Crawler == nil || deps.Extractor == nil || deps.Publisher == nil {
		return nil, eris.New("pipeline: crawler, extractor and publisher are required")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.SourceAgent == "" {
		opts.SourceAgent = "leadgen"
	}
	return &Runner{deps: deps, opts: opts, now: time.Now}, nil
}

// Run drives job to Done and returns its outcome. Per-target failures are
// logged and recorded in Outcome.Errors; they never stop the job.
func (r *Runner) Run(ctx context.Context, job *model.PipelineJob) Outcome {
	log := zap.L().With(zap.String("job_id", job.ID), zap.String("city", job.Request.City))
	log.Info("pipeline: starting job", zap.String("market", job.Request.Market), zap.Time("deadline", job.Deadline))

	out := Outcome{JobID: job.ID}
	start := r.now()

	// Everything up to publishing shares the job deadline.
	jobCtx, cancel := context.WithDeadline(ctx, job.Deadline)
	defer cancel()

	finish := func() Outcome {
		r.transition(ctx, job, model.JobDone)
		out.FinalState = job.State
		r.record(ctx, job, &out)
		log.Info("pipeline: job done",
			zap.Int("profiles", len(out.Profiles)),
			zap.Int("published", out.Published),
			zap.Int("fallbacks", len(out.FallbackFiles)),
			zap.Int("errors", len(out.Errors)),
			zap.Bool("timed_out", out.TimedOut),
			zap.Duration("elapsed", r.now().Sub(start)),
		)
		return out
	}
	expired := func(next model.JobState) bool {
		if jobCtx.Err() == nil && !job.Expired(r.now()) {
			return false
		}
		out.TimedOut = true
		log.Warn("pipeline: deadline reached, finishing early", zap.String("next_state", string(next)))
		return true
	}

	// Discovering
	r.transition(ctx, job, model.JobDiscovering)
	if len(job.Targets) == 0 {
		r.discover(jobCtx, job, &out)
	}
	if len(job.Targets) == 0 {
		out.addError("no targets discovered")
		return finish()
	}

	// Crawling
	if expired(model.JobCrawling) {
		return finish()
	}
	r.transition(ctx, job, model.JobCrawling)
	crawled := r.crawlAll(jobCtx, job, &out)

	// Enriching
	targets := make([]model.Target, 0, len(crawled))
	var candidates []model.ContactCandidate
	for _, c := range crawled {
		targets = append(targets, c.target)
		candidates = append(candidates, c.candidates...)
	}
	profiles := consolidate.Consolidate(targets, candidates)
	out.Profiles = consolidate.Ordered(targets, profiles)

	if expired(model.JobEnriching) {
		return finish()
	}
	r.transition(ctx, job, model.JobEnriching)
	r.enrichAll(jobCtx, crawled, profiles, &out)

	// Drafting
	if expired(model.JobDrafting) {
		return finish()
	}
	r.transition(ctx, job, model.JobDrafting)
	r.draftAll(jobCtx, job, out.Profiles)

	// Publishing runs on the caller's context: once started every profile
	// is either sent or written to the fallback queue.
	if expired(model.JobPublishing) {
		return finish()
	}
	r.transition(ctx, job, model.JobPublishing)
	r.publishAll(ctx, job, &out)

	return finish()
}

func (r *Runner) discover(ctx context.Context, job *model.PipelineJob, out *Outcome) {
	if r.deps.Discoverer == nil {
		return
	}
	targets, err := r.deps.Discoverer.Discover(ctx, job.Request)
	if err != nil {
		zap.L().Warn("pipeline: discovery failed", zap.String("job_id", job.ID), zap.Error(err))
		out.addError("discovery: %v", err)
		return
	}
	job.Targets = targets
	zap.L().Info("pipeline: discovered targets", zap.String("job_id", job.ID), zap.Int("targets", len(targets)))
}

func (r *Runner) publishAll(ctx context.Context, job *model.PipelineJob, out *Outcome) {
	for _, p := range out.Profiles {
		msg := model.NewLeadMessage(job, p, r.opts.SourceAgent, r.now())
		d, err := r.deps.Publisher.Deliver(ctx, msg)
		switch {
		case err != nil:
			// Neither sent nor queued; the message exists only in the log.
			zap.L().Error("pipeline: lead lost",
				zap.String("job_id", job.ID),
				zap.String("entity_id", p.EntityID),
				zap.Error(err),
			)
			out.addError("publish %s: %v", p.EntityID, err)
		case d.Sent:
			out.Published++
		case d.Fallback != nil:
			out.FallbackFiles = append(out.FallbackFiles, d.Fallback.FileName)
		}
	}
	if err := r.deps.Publisher.Flush(ctx); err != nil {
		zap.L().Warn("pipeline: flush failed", zap.String("job_id", job.ID), zap.Error(err))
		out.addError("flush: %v", err)
	}
}

// transition moves job to state and reports it. Recording uses a context
// detached from the job so a passed deadline never hides the final state.
func (r *Runner) transition(ctx context.Context, job *model.PipelineJob, state model.JobState) {
	job.State = state
	zap.L().Debug("pipeline: state", zap.String("job_id", job.ID), zap.String("state", string(state)))
	if r.deps.Recorder == nil {
		return
	}
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := r.deps.Recorder.UpdateJobState(recCtx, job.ID, state); err != nil {
		zap.L().Warn("pipeline: record state failed", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func (r *Runner) record(ctx context.Context, job *model.PipelineJob, out *Outcome) {
	if r.deps.Recorder == nil {
		return
	}
	rec := model.JobRecord{
		ID:        job.ID,
		Request:   job.Request,
		State:     job.State,
		Targets:   len(job.Targets),
		Profiles:  len(out.Profiles),
		Published: out.Published,
		Fallbacks: len(out.FallbackFiles),
	}
	if len(out.Errors) > 0 {
		rec.Error = out.Errors[0]
		if len(out.Errors) > 1 {
			rec.Error = fmt.Sprintf("%s (and %d more)", rec.Error, len(out.Errors)-1)
		}
	}
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := r.deps.Recorder.FinishJob(recCtx, rec); err != nil {
		zap.L().Warn("pipeline: record outcome failed", zap.String("job_id", job.ID), zap.Error(err))
	}
}

// errorList collects per-target errors from concurrent tasks.
type errorList struct {
	mu   sync.Mutex
	errs []string
}

func (l *errorList) add(format string, args ...any) {
	l.mu.Lock()
	l.errs = append(l.errs, fmt.Sprintf(format, args...))
	l.mu.Unlock()
}
