// Package discovery turns a lead request into the Targets a pipeline job
// crawls. Targets come from Google Places, a web search or a static list.
package discovery

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/model"
)

// DefaultMaxTargets caps the targets returned for one request.
const DefaultMaxTargets = 10

// Source produces candidate targets for a request.
type Source interface {
	Name() string
	Discover(ctx context.Context, req model.LeadRequest) ([]model.Target, error)
}

// Options configures a Discoverer.
type Options struct {
	MaxTargets int
	// Blocklist holds directory and social hosts that are never partners.
	// Nil uses DefaultBlocklist.
	Blocklist []string
}

// Discoverer queries sources in order and merges their targets.
type Discoverer struct {
	sources []Source
	opts    Options
}

// New creates a Discoverer over sources.
func New(opts Options, sources ...Source) *Discoverer {
	if opts.MaxTargets <= 0 {
		opts.MaxTargets = DefaultMaxTargets
	}
	if opts.Blocklist == nil {
		opts.Blocklist = DefaultBlocklist
	}
	return &Discoverer{sources: sources, opts: opts}
}

// Discover returns up to MaxTargets distinct targets. A failing source is
// logged and skipped; an error is returned only when every source failed.
func (d *Discoverer) Discover(ctx context.Context, req model.LeadRequest) ([]model.Target, error) {
	if len(d.sources) == 0 {
		return nil, eris.New("discovery: no sources configured")
	}

	log := zap.L().With(zap.String("city", req.City), zap.String("market", req.Market))

	var (
		targets []model.Target
		failed  int
		lastErr error
	)
	seen := make(map[string]bool)

	for _, src := range d.sources {
		if ctx.Err() != nil {
			break
		}
		found, err := src.Discover(ctx, req)
		if err != nil {
			log.Warn("discovery: source failed", zap.String("source", src.Name()), zap.Error(err))
			failed++
			lastErr = err
			continue
		}
		kept := 0
		for _, t := range found {
			if t.SeedURL == "" || IsDirectoryURL(t.SeedURL, d.opts.Blocklist) || seen[t.EntityID] {
				continue
			}
			seen[t.EntityID] = true
			targets = append(targets, t)
			kept++
			if len(targets) >= d.opts.MaxTargets {
				break
			}
		}
		log.Info("discovery: source complete",
			zap.String("source", src.Name()),
			zap.Int("found", len(found)),
			zap.Int("kept", kept),
		)
		if len(targets) >= d.opts.MaxTargets {
			break
		}
	}

	if failed == len(d.sources) {
		return nil, eris.Wrap(lastErr, "discovery: all sources failed")
	}
	return targets, nil
}

// Queries returns the search phrases used for a request's market.
func Queries(req model.LeadRequest) []string {
	loc := req.Location()
	var kinds []string
	switch req.Market {
	case "Student Recruitment":
		kinds = []string{
			"international schools",
			"IELTS and TOEFL coaching centres",
			"study abroad consultants",
			"A-Level tuition centres",
		}
	case "Medical Tourism":
		kinds = []string{
			"diagnostic centres",
			"specialist clinics",
			"medical tourism facilitators",
			"expat health services",
		}
	default:
		kinds = []string{strings.ToLower(req.Market)}
	}

	queries := make([]string, len(kinds))
	for i, k := range kinds {
		queries[i] = k + " in " + loc
	}
	return queries
}
