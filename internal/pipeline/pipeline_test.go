package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen/internal/extract"
	"github.com/sells-group/leadgen/internal/model"
)

var testRequest = model.LeadRequest{City: "pune", Market: "Student Recruitment"}

const acmePage = "Welcome to Acme Academy. Write to contact@acme.com or call (555) 123-4567. " +
	"Follow us at https://facebook.com/acme for admissions news."

const enrichReply = `{"decision_maker":"Priya Nair","contact_info":"priya@acme.com","contact_channel":"Email","key_facts":["Offers IELTS coaching"," "]}`

const draftReply = `{"draft_message":"Hi Priya, we place students from Pune abroad and would love to work with Acme Academy."}`

type harness struct {
	crawler   *fakeCrawler
	publisher *fakePublisher
	recorder  *fakeRecorder
	runner    *Runner
}

func newHarness(t *testing.T, deps Deps, opts Options) *harness {
	t.Helper()
	h := &harness{
		crawler:   &fakeCrawler{pages: map[string]string{"https://acme.edu": acmePage}},
		publisher: &fakePublisher{fallback: map[string]bool{}},
		recorder:  &fakeRecorder{},
	}
	if deps.Crawler == nil {
		deps.Crawler = h.crawler
	}
	deps.Extractor = extract.New(extract.Options{DefaultCountryCode: "1"})
	deps.Publisher = h.publisher
	deps.Recorder = h.recorder

	r, err := New(deps, opts)
	require.NoError(t, err)
	h.runner = r
	return h
}

func twoTargets() []model.Target {
	return []model.Target{
		model.NewTarget("https://acme.edu", "Acme Academy"),
		model.NewTarget("https://unreachable.example", "Bright Minds Coaching"),
	}
}

func TestRun_EndToEnd(t *testing.T) {
	svc := &stubService{enrich: enrichReply, draft: draftReply}
	h := newHarness(t, Deps{Adapter: newTestAdapter(svc)}, Options{SourceAgent: "test-agent"})

	job := model.NewPipelineJob(testRequest, twoTargets(), time.Minute)
	out := h.runner.Run(context.Background(), job)

	assert.Equal(t, model.JobDone, out.FinalState)
	assert.False(t, out.TimedOut)
	assert.Empty(t, out.Errors)
	require.Len(t, out.Profiles, 2)

	acme := out.Profiles[0]
	assert.Equal(t, "Acme Academy", acme.DisplayName)
	assert.Equal(t, []string{"contact@acme.com", "priya@acme.com"}, acme.Emails.Values())
	assert.Equal(t, []string{"+15551234567"}, acme.Phones.Values())
	assert.Equal(t, []string{"https://facebook.com/acme"}, acme.ExternalLinks.Values())
	assert.Equal(t, []string{"Offers IELTS coaching"}, acme.KeyFacts)
	require.NotNil(t, acme.DecisionMaker)
	assert.Equal(t, "Priya Nair", *acme.DecisionMaker)
	require.NotNil(t, acme.ChannelOfRecord)
	assert.Equal(t, model.ChannelEmail, *acme.ChannelOfRecord)
	assert.Equal(t, model.StatusEnriched, acme.Status)
	require.NotNil(t, acme.DraftMessage)
	assert.Contains(t, *acme.DraftMessage, "Hi Priya")
	assert.True(t, acme.Frozen())

	bright := out.Profiles[1]
	assert.Equal(t, model.StatusIncomplete, bright.Status)
	assert.False(t, bright.HasContact())

	assert.Equal(t, 2, out.Published)
	assert.Empty(t, out.FallbackFiles)
	require.Len(t, h.publisher.msgs, 2)
	assert.Equal(t, "test-agent", h.publisher.msgs[0].SourceAgent)
	assert.Equal(t, job.ID, h.publisher.msgs[0].JobID)
	assert.Equal(t, 1, h.publisher.flushes)

	assert.Equal(t, []model.JobState{
		model.JobDiscovering, model.JobCrawling, model.JobEnriching,
		model.JobDrafting, model.JobPublishing, model.JobDone,
	}, h.recorder.states)
	require.Len(t, h.recorder.finished, 1)
	rec := h.recorder.finished[0]
	assert.Equal(t, job.ID, rec.ID)
	assert.Equal(t, model.JobDone, rec.State)
	assert.Equal(t, 2, rec.Targets)
	assert.Equal(t, 2, rec.Profiles)
	assert.Equal(t, 2, rec.Published)
	assert.Empty(t, rec.Error)
}

func TestRun_WithoutAdapterUsesTemplate(t *testing.T) {
	h := newHarness(t, Deps{}, Options{})

	job := model.NewPipelineJob(testRequest, twoTargets()[:1], time.Minute)
	out := h.runner.Run(context.Background(), job)

	require.Len(t, out.Profiles, 1)
	p := out.Profiles[0]
	assert.Equal(t, model.StatusIncomplete, p.Status)
	require.NotNil(t, p.DraftMessage)
	assert.Equal(t, TemplateDraft(p, testRequest), *p.DraftMessage)
	assert.Contains(t, *p.DraftMessage, "agencies in Pune")
}

func TestRun_ExtractionFailureKeepsGoing(t *testing.T) {
	svc := &stubService{err: errors.New("overloaded")}
	h := newHarness(t, Deps{Adapter: newTestAdapter(svc)}, Options{})

	job := model.NewPipelineJob(testRequest, twoTargets()[:1], time.Minute)
	out := h.runner.Run(context.Background(), job)

	assert.Equal(t, model.JobDone, out.FinalState)
	require.Len(t, out.Profiles, 1)
	p := out.Profiles[0]
	assert.Equal(t, model.StatusIncomplete, p.Status)
	assert.Equal(t, []string{"contact@acme.com"}, p.Emails.Values())
	require.NotNil(t, p.DraftMessage)
	assert.Equal(t, TemplateDraft(p, testRequest), *p.DraftMessage)
	require.Len(t, out.Errors, 1)
	assert.Contains(t, out.Errors[0], "enrich")
	assert.Equal(t, 1, out.Published)
}

func TestRun_InvalidFieldMarksIncomplete(t *testing.T) {
	svc := &stubService{
		enrich: `{"decision_maker":"Call 555-0100","contact_info":null,"contact_channel":"Pager","key_facts":["Founded 1998"]}`,
		draft:  draftReply,
	}
	h := newHarness(t, Deps{Adapter: newTestAdapter(svc)}, Options{})

	job := model.NewPipelineJob(testRequest, twoTargets()[:1], time.Minute)
	out := h.runner.Run(context.Background(), job)

	require.Len(t, out.Profiles, 1)
	p := out.Profiles[0]
	assert.Equal(t, []string{"decision_maker", "contact_channel"}, p.InvalidFields)
	assert.Equal(t, []string{"Founded 1998"}, p.KeyFacts)
	assert.Equal(t, model.StatusIncomplete, p.Status)
}

func TestRun_FallbackFilesReported(t *testing.T) {
	h := newHarness(t, Deps{}, Options{})
	targets := twoTargets()
	h.publisher.fallback[targets[1].EntityID] = true

	out := h.runner.Run(context.Background(), model.NewPipelineJob(testRequest, targets, time.Minute))

	assert.Equal(t, 1, out.Published)
	require.Len(t, out.FallbackFiles, 1)
	assert.Contains(t, out.FallbackFiles[0], "bright-minds-coaching")
	assert.Equal(t, 1, h.recorder.finished[0].Fallbacks)
}

func TestRun_DeadlineFinishesEarly(t *testing.T) {
	crawler := &fakeCrawler{delay: 5 * time.Second}
	h := newHarness(t, Deps{Crawler: crawler}, Options{Concurrency: 5})

	targets := make([]model.Target, 10)
	for i := range targets {
		targets[i] = model.NewTarget(fmt.Sprintf("https://site%d.example", i), fmt.Sprintf("Site %d", i))
	}
	job := model.NewPipelineJob(testRequest, targets, 200*time.Millisecond)

	start := time.Now()
	out := h.runner.Run(context.Background(), job)
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 2*time.Second)
	assert.Equal(t, model.JobDone, out.FinalState)
	assert.True(t, out.TimedOut)
	assert.Less(t, len(out.Profiles), 10)
	assert.Empty(t, h.publisher.msgs)
	assert.Equal(t, []model.JobState{model.JobDiscovering, model.JobCrawling, model.JobDone}, h.recorder.states)
	assert.LessOrEqual(t, crawler.maxActive, 5)
}

func TestRun_PanicIsolatedToTarget(t *testing.T) {
	crawler := &fakeCrawler{
		pages:   map[string]string{"https://acme.edu": acmePage},
		panicOn: "https://unreachable.example",
	}
	h := newHarness(t, Deps{Crawler: crawler}, Options{})

	out := h.runner.Run(context.Background(), model.NewPipelineJob(testRequest, twoTargets(), time.Minute))

	assert.Equal(t, model.JobDone, out.FinalState)
	require.Len(t, out.Profiles, 1)
	assert.Equal(t, "Acme Academy", out.Profiles[0].DisplayName)
	require.Len(t, out.Errors, 1)
	assert.Contains(t, out.Errors[0], "panicked")
}

func TestRun_ConcurrencyBounded(t *testing.T) {
	crawler := &fakeCrawler{delay: 20 * time.Millisecond}
	h := newHarness(t, Deps{Crawler: crawler}, Options{Concurrency: 3})

	targets := make([]model.Target, 8)
	for i := range targets {
		targets[i] = model.NewTarget(fmt.Sprintf("https://site%d.example", i), fmt.Sprintf("Site %d", i))
	}
	out := h.runner.Run(context.Background(), model.NewPipelineJob(testRequest, targets, time.Minute))

	assert.Len(t, out.Profiles, 8)
	assert.LessOrEqual(t, crawler.maxActive, 3)
	assert.Equal(t, 8, out.Published)
}

func TestRun_DuplicateTargetsPublishOnce(t *testing.T) {
	h := newHarness(t, Deps{}, Options{})
	acme := model.NewTarget("https://acme.edu", "Acme Academy")

	out := h.runner.Run(context.Background(), model.NewPipelineJob(testRequest, []model.Target{acme, acme}, time.Minute))

	require.Len(t, out.Profiles, 1)
	assert.Len(t, h.publisher.msgs, 1)
}

func TestRun_Discovery(t *testing.T) {
	disc := &fakeDiscoverer{targets: twoTargets()[:1]}
	h := newHarness(t, Deps{Discoverer: disc}, Options{})

	job := model.NewPipelineJob(testRequest, nil, time.Minute)
	out := h.runner.Run(context.Background(), job)

	require.Len(t, job.Targets, 1)
	require.Len(t, out.Profiles, 1)
	assert.Equal(t, 1, out.Published)
}

func TestRun_DiscoveryFailure(t *testing.T) {
	disc := &fakeDiscoverer{err: errors.New("quota exceeded")}
	h := newHarness(t, Deps{Discoverer: disc}, Options{})

	out := h.runner.Run(context.Background(), model.NewPipelineJob(testRequest, nil, time.Minute))

	assert.Equal(t, model.JobDone, out.FinalState)
	assert.Empty(t, out.Profiles)
	require.Len(t, out.Errors, 2)
	assert.Contains(t, out.Errors[0], "quota exceeded")
	assert.Equal(t, "no targets discovered", out.Errors[1])
	assert.Empty(t, h.publisher.msgs)
	assert.Equal(t, []model.JobState{model.JobDiscovering, model.JobDone}, h.recorder.states)
	assert.Contains(t, h.recorder.finished[0].Error, "(and 1 more)")
}

func TestNew_RequiresDeps(t *testing.T) {
	_, err := New(Deps{}, Options{})
	assert.Error(t, err)
}

func TestCrawlTarget_KeepsFinishedCrawlPastDeadline(t *testing.T) {
	h := newHarness(t, Deps{}, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	acme := model.NewTarget("https://acme.edu", "Acme Academy")
	c, err := h.runner.crawlTarget(ctx, acme)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.False(t, c.placeholder)
	assert.NotEmpty(t, c.candidates)

	_, err = h.runner.crawlTarget(ctx, model.NewTarget("https://unreachable.example", "Bright Minds Coaching"))
	assert.Error(t, err)
}
