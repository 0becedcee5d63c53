package crawl

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/leadgen/internal/model"
)

func TestStripBoilerplate(t *testing.T) {
	t.Parallel()
	in := "Skip to main content\n" +
		"# Sunrise Academy\n" +
		"We use cookies to give you the best experience.\n" +
		"Accept all cookies\n" +
		"Admissions are open for 2025.\n" +
		"Please enable JavaScript to view the map.\n" +
		"Our cookie policy explains how we store data, read it here: https://sunrise.edu/privacy and more about everything we do with your data.\n" +
		"\n\n\n" +
		"Call +91 20 1234 5678\n" +
		"© 2024 Sunrise Academy. All rights reserved."

	want := "# Sunrise Academy\n" +
		"Admissions are open for 2025.\n" +
		"Our cookie policy explains how we store data, read it here: https://sunrise.edu/privacy and more about everything we do with your data.\n" +
		"\n" +
		"Call +91 20 1234 5678"

	assert.Equal(t, want, StripBoilerplate(in))
}

func TestCombinePages(t *testing.T) {
	t.Parallel()
	pages := []model.CrawledPage{
		{URL: "https://a.com/", Text: "Home text"},
		{URL: "https://a.com/team", Text: "Team text\nCopyright 2024 A"},
	}
	want := "--- Page: https://a.com/ ---\nHome text\n\n--- Page: https://a.com/team ---\nTeam text"
	assert.Equal(t, want, CombinePages(pages))
}
