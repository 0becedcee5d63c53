package model

import "time"

// PageKind records why a page was fetched during a crawl.
type PageKind string

const (
	PageKindSeed       PageKind = "seed"
	PageKindNavigation PageKind = "navigation"
)

// Link is an anchor discovered on a fetched page.
type Link struct {
	Href string `json:"href"`
	Text string `json:"text"`
}

// CrawledPage represents a page fetched during crawling. Pages are scoped to
// the crawl that produced them and are only persisted through the crawl cache.
type CrawledPage struct {
	URL        string   `json:"url"`
	Title      string   `json:"title"`
	Text       string   `json:"text"`
	HTML       string   `json:"-"`
	Links      []Link   `json:"links,omitempty"`
	StatusCode int      `json:"status_code"`
	Kind       PageKind `json:"kind"`
	Source     string   `json:"source,omitempty"`
}

// CrawlCache stores a cached crawl result for one seed URL.
type CrawlCache struct {
	ID        string        `json:"id"`
	SiteURL   string        `json:"site_url"`
	Pages     []CrawledPage `json:"pages"`
	CrawledAt time.Time     `json:"crawled_at"`
	ExpiresAt time.Time     `json:"expires_at"`
}
