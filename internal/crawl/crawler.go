// Package crawl fetches a target's seed page and its most promising
// navigation pages and combines them into one text document. A crawl never
// fails: when nothing can be fetched the result is a placeholder document.
package crawl

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/resilience"
	"github.com/sells-group/leadgen/internal/scorer"
	"github.com/sells-group/leadgen/internal/scrape"
)

// Defaults applied to zero Options fields.
const (
	DefaultPageTimeout     = 60 * time.Second
	DefaultMaxAttempts     = 3
	DefaultMinContentChars = 200
	DefaultRatePerSec      = 2.0
	DefaultCacheTTL        = 24 * time.Hour
)

// Options configures a Crawler.
type Options struct {
	PageTimeout        time.Duration
	MaxAttempts        int
	MaxNavigationDepth int
	MinContentChars    int
	// RatePerSec limits page fetches per host. Negative disables limiting.
	RatePerSec float64
	CacheTTL   time.Duration
}

func (o Options) withDefaults() Options {
	if o.PageTimeout <= 0 {
		o.PageTimeout = DefaultPageTimeout
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.MaxNavigationDepth <= 0 {
		o.MaxNavigationDepth = scorer.DefaultDepth
	}
	if o.MinContentChars <= 0 {
		o.MinContentChars = DefaultMinContentChars
	}
	if o.RatePerSec == 0 {
		o.RatePerSec = DefaultRatePerSec
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = DefaultCacheTTL
	}
	return o
}

// Cache persists crawled pages per seed URL. A nil page slice from
// GetCachedCrawl is a miss.
type Cache interface {
	GetCachedCrawl(ctx context.Context, siteURL string) (*model.CrawlCache, error)
	SetCachedCrawl(ctx context.Context, siteURL string, pages []model.CrawledPage, ttl time.Duration) error
}

// Result is the combined output of one crawl.
type Result struct {
	Text         string
	CanonicalURL string
	Pages        []model.CrawledPage
	Placeholder  bool
	FromCache    bool
}

// Option configures optional Crawler collaborators.
type Option func(*Crawler)

// WithPatient sets the scraper used to re-render thin or client-rendered
// seed pages.
func WithPatient(s scrape.Scraper) Option {
	return func(c *Crawler) { c.patient = s }
}

// WithCache enables the crawl cache.
func WithCache(cache Cache) Option {
	return func(c *Crawler) { c.cache = cache }
}

// WithUserAgents sets the user agent pool.
func WithUserAgents(r *scrape.UserAgentRotator) Option {
	return func(c *Crawler) { c.agents = r }
}

// WithScorer overrides the navigation link scorer.
func WithScorer(s *scorer.Scorer) Option {
	return func(c *Crawler) { c.scorer = s }
}

// WithRetry overrides the seed fetch retry schedule. MaxAttempts in opts
// still wins when set.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *Crawler) { c.retry = cfg }
}

// Crawler crawls one target at a time; a single Crawler is safe for
// concurrent use across targets.
type Crawler struct {
	fetcher scrape.Scraper
	patient scrape.Scraper
	cache   Cache
	agents  *scrape.UserAgentRotator
	scorer  *scorer.Scorer
	opts    Options
	retry   resilience.RetryConfig

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a Crawler that fetches pages through fetcher.
func New(fetcher scrape.Scraper, opts Options, options ...Option) *Crawler {
	c := &Crawler{
		fetcher:  fetcher,
		opts:     opts.withDefaults(),
		retry:    resilience.NewRetryConfig(0, 1000, 8000, 2.0, 0.25),
		limiters: make(map[string]*rate.Limiter),
	}
	for _, o := range options {
		o(c)
	}
	if c.agents == nil {
		c.agents = scrape.NewUserAgentRotator()
	}
	if c.scorer == nil {
		c.scorer = scorer.New(scorer.DefaultConfig())
	}
	c.retry.MaxAttempts = c.opts.MaxAttempts
	c.retry.ShouldRetry = resilience.RetryUnlessCanceled
	return c
}

// Crawl fetches the target's seed page and up to MaxNavigationDepth ranked
// navigation pages on the same site.
func (c *Crawler) Crawl(ctx context.Context, target model.Target) Result {
	log := zap.L().With(
		zap.String("entity_id", target.EntityID),
		zap.String("url", target.SeedURL),
	)

	if res, ok := c.fromCache(ctx, target); ok {
		log.Info("crawl: using cached result", zap.Int("pages", len(res.Pages)))
		return res
	}

	seed, err := c.fetchSeed(ctx, target.SeedURL)
	if err != nil {
		log.Warn("crawl: seed fetch failed", zap.Error(err))
		seed = c.patientFetch(ctx, target.SeedURL, nil)
		if seed == nil {
			return placeholderResult(target)
		}
	} else if thin, reason := c.needsPatient(*seed); thin {
		log.Debug("crawl: seed looks incomplete, re-fetching patiently", zap.String("reason", reason))
		seed = c.patientFetch(ctx, target.SeedURL, seed)
	}
	seed.Kind = model.PageKindSeed

	pages := []model.CrawledPage{*seed}
	for _, href := range c.navigationLinks(*seed) {
		if ctx.Err() != nil {
			break
		}
		page, err := c.fetchPage(ctx, href)
		if err != nil {
			log.Debug("crawl: navigation page failed", zap.String("page", href), zap.Error(err))
			continue
		}
		page.Kind = model.PageKindNavigation
		pages = append(pages, *page)
	}

	if c.cache != nil {
		// The crawl itself succeeded even if the deadline is close.
		cacheCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if err := c.cache.SetCachedCrawl(cacheCtx, target.SeedURL, pages, c.opts.CacheTTL); err != nil {
			log.Warn("crawl: failed to cache result", zap.Error(err))
		}
		cancel()
	}

	log.Info("crawl: complete", zap.Int("pages", len(pages)), zap.String("source", seed.Source))
	return Result{
		Text:         CombinePages(pages),
		CanonicalURL: seed.URL,
		Pages:        pages,
	}
}

func (c *Crawler) fromCache(ctx context.Context, target model.Target) (Result, bool) {
	if c.cache == nil {
		return Result{}, false
	}
	cached, err := c.cache.GetCachedCrawl(ctx, target.SeedURL)
	if err != nil {
		zap.L().Warn("crawl: cache lookup failed", zap.String("url", target.SeedURL), zap.Error(err))
		return Result{}, false
	}
	if cached == nil || len(cached.Pages) == 0 {
		return Result{}, false
	}
	return Result{
		Text:         CombinePages(cached.Pages),
		CanonicalURL: cached.Pages[0].URL,
		Pages:        cached.Pages,
		FromCache:    true,
	}, true
}

// fetchSeed retries the seed page with a fresh user agent on every attempt.
func (c *Crawler) fetchSeed(ctx context.Context, seedURL string) (*model.CrawledPage, error) {
	cfg := c.retry
	cfg.OnRetry = resilience.RetryLogger("crawl", "seed", zap.String("url", seedURL))
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*model.CrawledPage, error) {
		return c.fetchPage(ctx, seedURL)
	})
}

// fetchPage makes one rate-limited fetch under the page timeout.
func (c *Crawler) fetchPage(ctx context.Context, pageURL string) (*model.CrawledPage, error) {
	return c.fetchWith(ctx, c.fetcher, pageURL)
}

func (c *Crawler) fetchWith(ctx context.Context, s scrape.Scraper, pageURL string) (*model.CrawledPage, error) {
	if err := c.wait(ctx, pageURL); err != nil {
		return nil, err
	}
	pageCtx, cancel := context.WithTimeout(ctx, c.opts.PageTimeout)
	defer cancel()

	res, err := s.Scrape(pageCtx, scrape.Request{URL: pageURL, UserAgent: c.agents.Next()})
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, eris.Errorf("crawl: empty result for %s", pageURL)
	}
	page := res.Page
	if page.URL == "" {
		page.URL = pageURL
	}
	if page.Source == "" {
		page.Source = res.Source
	}
	return &page, nil
}

// needsPatient reports whether a seed page is too thin or client-rendered.
func (c *Crawler) needsPatient(p model.CrawledPage) (bool, string) {
	if len(strings.TrimSpace(p.Text)) < c.opts.MinContentChars {
		return true, "thin_content"
	}
	return scrape.DetectSPA(p)
}

// patientFetch re-renders pageURL and returns whichever of the new page and
// current has more text. current may be nil.
func (c *Crawler) patientFetch(ctx context.Context, pageURL string, current *model.CrawledPage) *model.CrawledPage {
	if c.patient == nil || ctx.Err() != nil {
		return current
	}
	page, err := c.fetchWith(ctx, c.patient, pageURL)
	if err != nil {
		zap.L().Debug("crawl: patient fetch failed", zap.String("url", pageURL), zap.Error(err))
		return current
	}
	if current == nil || len(strings.TrimSpace(page.Text)) > len(strings.TrimSpace(current.Text)) {
		return page
	}
	return current
}

// navigationLinks returns the seed's best same-site links, excluding the
// seed itself.
func (c *Crawler) navigationLinks(seed model.CrawledPage) []string {
	self := linkKey(seed.URL)
	var candidates []model.Link
	for _, l := range seed.Links {
		if !SameSite(seed.URL, l.Href) || linkKey(l.Href) == self {
			continue
		}
		candidates = append(candidates, l)
	}
	return c.scorer.Top(candidates, c.opts.MaxNavigationDepth)
}

func (c *Crawler) wait(ctx context.Context, pageURL string) error {
	if c.opts.RatePerSec < 0 {
		return nil
	}
	host := pageURL
	if u, err := url.Parse(pageURL); err == nil && u.Host != "" {
		host = strings.ToLower(u.Host)
	}

	c.mu.Lock()
	lim, ok := c.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(c.opts.RatePerSec), 1)
		c.limiters[host] = lim
	}
	c.mu.Unlock()

	if err := lim.Wait(ctx); err != nil {
		return eris.Wrap(err, "crawl: rate limit wait")
	}
	return nil
}

func linkKey(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Fragment = ""
	u.RawQuery = ""
	return strings.ToLower(strings.TrimPrefix(u.Host, "www.")) + strings.TrimSuffix(u.Path, "/")
}

func placeholderResult(target model.Target) Result {
	return Result{
		Text:         Placeholder(target.DisplayName, target.SeedURL),
		CanonicalURL: target.SeedURL,
		Placeholder:  true,
	}
}

// Placeholder is the document returned when a site cannot be crawled.
func Placeholder(name, siteURL string) string {
	return "# Contact Information for " + name + "\n" +
		"Website: " + siteURL + "\n\n" +
		"Note: unable to extract contact information due to crawling failure. " +
		"Please verify the website URL and try again.\n"
}
