// Package scrape fetches single web pages for the site crawler. Each Scraper
// returns the page's readable text, outgoing links and raw markup; the Chain
// tries scrapers in priority order.
package scrape

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen/internal/model"
)

// ErrBlocked is wrapped by scrapers that detected anti-bot protection.
var ErrBlocked = eris.New("scrape: blocked")

// Request is one page fetch.
type Request struct {
	URL       string
	UserAgent string
}

// Result holds a scraped page with its source.
type Result struct {
	Page   model.CrawledPage
	Source string // e.g. "local_http", "browser", "jina"
}

// Scraper fetches a single URL and returns its content.
type Scraper interface {
	Scrape(ctx context.Context, req Request) (*Result, error)
	Name() string
	Supports(url string) bool
}
