package pipeline

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/sells-group/leadgen/internal/extract"
	"github.com/sells-group/leadgen/internal/model"
)

// crawled is one target's crawl output. Each task owns its own candidate
// list until consolidation.
type crawled struct {
	target      model.Target
	document    string
	candidates  []model.ContactCandidate
	placeholder bool
}

// crawlAll crawls job's targets with at most Concurrency in flight. Tasks
// that fail, panic or are cut off by the deadline are excluded. The result
// keeps target order.
func (r *Runner) crawlAll(ctx context.Context, job *model.PipelineJob, out *Outcome) []crawled {
	sem := semaphore.NewWeighted(int64(r.opts.Concurrency))
	slots := make([]*crawled, len(job.Targets))
	errs := &errorList{}

	started := 0
	for i, t := range job.Targets {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		started++
		go func() {
			defer sem.Release(1)
			c, err := r.crawlTarget(ctx, t)
			if err != nil {
				zap.L().Warn("pipeline: crawl task failed",
					zap.String("job_id", job.ID),
					zap.String("entity_id", t.EntityID),
					zap.Error(err),
				)
				errs.add("crawl %s: %v", t.EntityID, err)
				return
			}
			slots[i] = c
		}()
	}
	// Acquiring the full weight waits for every started task. The parent
	// context is used so a passed deadline still waits for tasks to unwind.
	_ = sem.Acquire(context.WithoutCancel(ctx), int64(r.opts.Concurrency))

	if skipped := len(job.Targets) - started; skipped > 0 {
		errs.add("crawl: %d target(s) not started before the deadline", skipped)
	}

	results := make([]crawled, 0, len(slots))
	for _, c := range slots {
		if c != nil {
			results = append(results, *c)
		}
	}
	out.Errors = append(out.Errors, errs.errs...)
	zap.L().Info("pipeline: crawl stage complete",
		zap.String("job_id", job.ID),
		zap.Int("targets", len(job.Targets)),
		zap.Int("crawled", len(results)),
	)
	return results
}

// crawlTarget crawls t, extracts contacts from every page and appends a
// contact summary to the combined text for enrichment.
func (r *Runner) crawlTarget(ctx context.Context, t model.Target) (c *crawled, err error) {
	defer recoverTask(&err, "crawl", t.EntityID)

	res := r.deps.Crawler.Crawl(ctx, t)
	if ctx.Err() != nil && res.Placeholder {
		return nil, eris.Wrap(ctx.Err(), "pipeline: crawl interrupted")
	}

	var cands []model.ContactCandidate
	if len(res.Pages) == 0 {
		cands = r.deps.Extractor.Extract(t.EntityID, res.CanonicalURL, res.Text)
	}
	for _, p := range res.Pages {
		cands = append(cands, r.deps.Extractor.Extract(t.EntityID, p.URL, p.Text)...)
	}

	var doc strings.Builder
	doc.WriteString(res.Text)
	doc.WriteString("\n\n")
	doc.WriteString(extract.Summary(t.DisplayName, res.CanonicalURL, cands))

	return &crawled{
		target:      t,
		document:    doc.String(),
		candidates:  cands,
		placeholder: res.Placeholder,
	}, nil
}

// recoverTask turns a panic in a per-target task into an error.
func recoverTask(err *error, stage, entityID string) {
	if p := recover(); p != nil {
		zap.L().Error("pipeline: task panicked",
			zap.String("stage", stage),
			zap.String("entity_id", entityID),
			zap.Any("panic", p),
			zap.Stack("stack"),
		)
		*err = eris.Errorf("pipeline: %s panicked: %v", stage, p)
	}
}
