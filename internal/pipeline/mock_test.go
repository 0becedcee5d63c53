package pipeline

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sells-group/leadgen/internal/crawl"
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/publish"
	"github.com/sells-group/leadgen/internal/resilience"
	"github.com/sells-group/leadgen/internal/structured"
)

// --- Crawler ---

type fakeCrawler struct {
	pages   map[string]string
	delay   time.Duration
	panicOn string

	mu        sync.Mutex
	active    int
	maxActive int
}

func (f *fakeCrawler) Crawl(ctx context.Context, t model.Target) crawl.Result {
	f.mu.Lock()
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	placeholder := crawl.Result{
		Text:         crawl.Placeholder(t.DisplayName, t.SeedURL),
		CanonicalURL: t.SeedURL,
		Placeholder:  true,
	}
	if t.SeedURL == f.panicOn {
		panic("renderer crashed")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return placeholder
		}
	}
	text, ok := f.pages[t.SeedURL]
	if !ok {
		return placeholder
	}
	return crawl.Result{
		Text:         text,
		CanonicalURL: t.SeedURL,
		Pages:        []model.CrawledPage{{URL: t.SeedURL, Text: text}},
	}
}

// --- Publisher ---

type fakePublisher struct {
	mu       sync.Mutex
	fallback map[string]bool
	msgs     []model.LeadMessage
	flushes  int
}

func (f *fakePublisher) Deliver(_ context.Context, msg model.LeadMessage) (publish.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	if f.fallback[msg.Partner.EntityID] {
		return publish.Delivery{Fallback: &publish.FallbackRecord{
			ID:       msg.Partner.EntityID,
			FileName: "lead_20261017T085501.000000Z_" + publish.Slug(msg.Partner.OrgName) + ".json",
		}}, nil
	}
	return publish.Delivery{Sent: true}, nil
}

func (f *fakePublisher) Flush(_ context.Context) error {
	f.mu.Lock()
	f.flushes++
	f.mu.Unlock()
	return nil
}

// --- Recorder ---

type fakeRecorder struct {
	mu       sync.Mutex
	states   []model.JobState
	finished []model.JobRecord
}

func (f *fakeRecorder) UpdateJobState(_ context.Context, _ string, state model.JobState) error {
	f.mu.Lock()
	f.states = append(f.states, state)
	f.mu.Unlock()
	return nil
}

func (f *fakeRecorder) FinishJob(_ context.Context, rec model.JobRecord) error {
	f.mu.Lock()
	f.finished = append(f.finished, rec)
	f.mu.Unlock()
	return nil
}

// --- Discoverer ---

type fakeDiscoverer struct {
	targets []model.Target
	err     error
}

func (f *fakeDiscoverer) Discover(_ context.Context, _ model.LeadRequest) ([]model.Target, error) {
	return f.targets, f.err
}

// --- Extraction service ---

type stubService struct {
	enrich string
	draft  string
	err    error
	calls  atomic.Int32
}

func (s *stubService) Complete(_ context.Context, prompt string, _ []byte) (string, error) {
	s.calls.Add(1)
	if s.err != nil {
		return "", s.err
	}
	if strings.Contains(prompt, "outreach message") {
		return s.draft, nil
	}
	return s.enrich, nil
}

func newTestAdapter(svc structured.Service) *structured.Adapter {
	retry := resilience.RetryConfig{
		MaxAttempts:    1,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		Multiplier:     2.0,
	}
	breaker := resilience.NewCircuitBreaker("test", resilience.CircuitBreakerConfig{
		FailureThreshold: 100,
		ResetTimeout:     time.Second,
	})
	return structured.NewAdapter(svc, structured.Options{Retry: &retry}, breaker)
}
