package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrawledPage_JSONHidesHTML(t *testing.T) {
	t.Parallel()
	page := CrawledPage{
		URL:        "https://sunrise.edu/team",
		Title:      "Our Team",
		Text:       "Principal: Jane Doe",
		HTML:       "<html><body>Principal: Jane Doe</body></html>",
		StatusCode: 200,
		Kind:       PageKindNavigation,
	}

	raw, err := json.Marshal(page)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.NotContains(t, fields, "HTML")
	assert.NotContains(t, fields, "html")
	assert.NotContains(t, fields, "links")
	assert.NotContains(t, fields, "source")
	assert.Equal(t, "navigation", fields["kind"])
}

func TestCrawlCache_RoundTripKeepsPageOrder(t *testing.T) {
	t.Parallel()
	cached := CrawlCache{
		SiteURL: "https://sunrise.edu",
		Pages: []CrawledPage{
			{URL: "https://sunrise.edu/", Kind: PageKindSeed, Links: []Link{{Href: "https://sunrise.edu/team", Text: "Team"}}},
			{URL: "https://sunrise.edu/team", Kind: PageKindNavigation},
		},
	}

	raw, err := json.Marshal(cached.Pages)
	require.NoError(t, err)
	var pages []CrawledPage
	require.NoError(t, json.Unmarshal(raw, &pages))

	require.Len(t, pages, 2)
	assert.Equal(t, PageKindSeed, pages[0].Kind)
	assert.Equal(t, "Team", pages[0].Links[0].Text)
	assert.Equal(t, "https://sunrise.edu/team", pages[1].URL)
}
