package scrape

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/resilience"
)

const maxBodyBytes = 2 << 20

// LocalScraper fetches HTML via net/http, detects blocks, and converts the
// markup to text. It does not execute JavaScript; client-rendered sites are
// left to the BrowserScraper.
type LocalScraper struct {
	client *http.Client
}

// NewLocalScraper creates a LocalScraper. timeout caps one whole request.
func NewLocalScraper(timeout time.Duration) *LocalScraper {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &LocalScraper{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
				MaxIdleConnsPerHost: 4,
			},
		},
	}
}

func (l *LocalScraper) Name() string { return "local_http" }

func (l *LocalScraper) Supports(u string) bool {
	lower := strings.ToLower(u)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Scrape fetches a URL, detects blocks and parses the markup.
func (l *LocalScraper) Scrape(ctx context.Context, req Request) (*Result, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, resilience.Permanent(eris.Wrap(err, "local_http: create request"))
	}
	ua := req.UserAgent
	if ua == "" {
		ua = defaultUserAgents[0]
	}
	httpReq.Header.Set("User-Agent", ua)
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := l.client.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "local_http: read body")
	}

	// A JS shell is returned as-is so the crawler can re-render it.
	if blocked, blockType := DetectBlock(resp, body); blocked && blockType != BlockJSShell {
		return nil, eris.Wrapf(ErrBlocked, "local_http: %s", blockType)
	}

	if resp.StatusCode >= 400 {
		err := eris.Errorf("local_http: status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") && !strings.HasPrefix(ct, "text/") {
		return nil, resilience.Permanent(eris.Errorf("local_http: unsupported content type %q", ct))
	}

	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, eris.New("local_http: empty page")
	}

	finalURL := req.URL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	doc, err := ParseHTML(finalURL, body)
	if err != nil {
		return nil, err
	}

	return &Result{
		Page: model.CrawledPage{
			URL:        finalURL,
			Title:      doc.Title,
			Text:       doc.Text,
			HTML:       string(body),
			Links:      doc.Links,
			StatusCode: resp.StatusCode,
			Source:     "local_http",
		},
		Source: "local_http",
	}, nil
}
