package crawl

import (
	"regexp"
	"strings"

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/scrape"
)

var boilerplateLineRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:we|this (?:site|website)) uses? cookies\b`),
	regexp.MustCompile(`(?i)^\W*(?:accept|allow|reject|manage)(?: all)? cookies\W*$`),
	regexp.MustCompile(`(?i)\bcookie (?:policy|settings|preferences|consent)\b.{0,40}$`),
	regexp.MustCompile(`(?i)\b(?:please )?enable javascript\b`),
	regexp.MustCompile(`(?i)\bjavascript (?:is )?(?:required|disabled)\b`),
	regexp.MustCompile(`(?i)^\W*skip to (?:main )?content\W*$`),
	regexp.MustCompile(`(?i)^\W*(?:©|\(c\)|copyright\b)`),
	regexp.MustCompile(`(?i)\ball rights reserved\.?\W*$`),
}

// StripBoilerplate drops lines that carry no site content: cookie banners,
// JavaScript notices, skip links and copyright footers.
func StripBoilerplate(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if isBoilerplate(strings.TrimSpace(line)) {
			continue
		}
		kept = append(kept, line)
	}
	return scrape.CollapseWhitespace(strings.Join(kept, "\n"))
}

func isBoilerplate(line string) bool {
	if line == "" || len(line) > 300 {
		return false
	}
	for _, re := range boilerplateLineRes {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// CombinePages joins page texts under "--- Page: <url> ---" separators.
func CombinePages(pages []model.CrawledPage) string {
	var sb strings.Builder
	for i, p := range pages {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("--- Page: " + p.URL + " ---\n")
		sb.WriteString(StripBoilerplate(p.Text))
	}
	return sb.String()
}
