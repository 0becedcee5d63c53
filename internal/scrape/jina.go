package scrape

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/resilience"
	"github.com/sells-group/leadgen/pkg/jina"
)

// JinaScraper wraps the hosted Jina Reader as a Scraper. A circuit breaker
// shared with other Jina users skips the service while it is failing.
type JinaScraper struct {
	client  jina.Client
	breaker *resilience.CircuitBreaker
	browser bool
	timeout time.Duration
}

// NewJinaScraper creates a JinaScraper. A nil breaker gets a private one.
func NewJinaScraper(client jina.Client, breaker *resilience.CircuitBreaker) *JinaScraper {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker("jina", resilience.CircuitBreakerConfig{
			FailureThreshold: 3,
			ResetTimeout:     60 * time.Second,
		})
	}
	return &JinaScraper{client: client, breaker: breaker}
}

// Patient returns a copy that asks Jina to render with a full browser and
// wait up to timeout for the page.
func (j *JinaScraper) Patient(timeout time.Duration) *JinaScraper {
	cp := *j
	cp.browser = true
	cp.timeout = timeout
	return &cp
}

func (j *JinaScraper) Name() string {
	if j.browser {
		return "jina_browser"
	}
	return "jina"
}

// Supports returns true unless the circuit breaker is open.
func (j *JinaScraper) Supports(_ string) bool {
	return j.breaker.State() != resilience.CircuitOpen
}

// Scrape fetches a URL via Jina Reader and validates the response. The user
// agent is not forwarded; Jina fetches with its own identity.
func (j *JinaScraper) Scrape(ctx context.Context, req Request) (*Result, error) {
	opts := []jina.ReadOption{jina.WithLinksSummary()}
	if j.browser {
		opts = append(opts, jina.WithBrowserEngine())
	}
	if j.timeout > 0 {
		opts = append(opts, jina.WithPageTimeout(j.timeout))
	}

	// A blocked page is the site's fault, not Jina's, so it is checked
	// outside the breaker.
	resp, err := resilience.ExecuteVal(ctx, j.breaker, func(ctx context.Context) (*jina.ReadResponse, error) {
		return j.client.Read(ctx, req.URL, opts...)
	})
	if err != nil {
		return nil, err
	}
	if needsFallback(resp) {
		return nil, eris.Wrapf(ErrBlocked, "jina: unusable response for %s", req.URL)
	}

	pageURL := resp.Data.URL
	if pageURL == "" {
		pageURL = req.URL
	}
	return &Result{
		Page: model.CrawledPage{
			URL:        pageURL,
			Title:      resp.Data.Title,
			Text:       CollapseWhitespace(resp.Data.Content),
			Links:      markdownLinks(resp.Data.Content, resp.Data.Links),
			StatusCode: 200,
			Source:     j.Name(),
		},
		Source: j.Name(),
	}, nil
}

var markdownLinkRe = regexp.MustCompile(`\[([^\]]*)\]\((https?://[^)\s]+|mailto:[^)\s]+|tel:[^)\s]+)\)`)

// markdownLinks returns the links in content in document order, followed by
// any summary links not already present, sorted by href.
func markdownLinks(content string, summary map[string]string) []model.Link {
	var links []model.Link
	seen := make(map[string]bool)
	for _, m := range markdownLinkRe.FindAllStringSubmatch(content, -1) {
		if seen[m[2]] {
			continue
		}
		seen[m[2]] = true
		links = append(links, model.Link{Href: m[2], Text: strings.TrimSpace(m[1])})
	}

	var extra []model.Link
	for text, href := range summary {
		if seen[href] {
			continue
		}
		seen[href] = true
		extra = append(extra, model.Link{Href: href, Text: strings.TrimSpace(text)})
	}
	sort.Slice(extra, func(i, k int) bool { return extra[i].Href < extra[k].Href })
	return append(links, extra...)
}

// needsFallback checks whether a Jina response contains usable content
// or indicates the page is blocked/empty.
func needsFallback(resp *jina.ReadResponse) bool {
	if resp == nil {
		return true
	}

	if resp.Code != 0 && resp.Code != 200 {
		return true
	}

	content := strings.TrimSpace(resp.Data.Content)
	if len(content) < 50 {
		return true
	}

	lower := strings.ToLower(content)
	challengeSignatures := []string{
		"checking your browser",
		"please enable cookies",
		"access denied",
		"403 forbidden",
		"just a moment",
		"attention required",
	}
	for _, sig := range challengeSignatures {
		if strings.Contains(lower, sig) && len(content) < 1000 {
			return true
		}
	}
	return false
}
