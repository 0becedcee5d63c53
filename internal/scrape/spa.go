package scrape

import (
	"regexp"
	"strings"

	"github.com/sells-group/leadgen/internal/model"
)

// Pages with at least this much visible text are treated as server-rendered
// even when they carry framework markers.
const spaTextThreshold = 500

var spaMarkers = []struct {
	marker string
	reason string
}{
	{"__next_data__", "nextjs"},
	{"data-reactroot", "react"},
	{"ng-version", "angular"},
	{"ng-app", "angular"},
	{"data-v-app", "vue"},
	{"window.__nuxt__", "nuxt"},
	{"data-server-rendered", "vue"},
	{"window.__initial_state__", "spa_state"},
	{"id=\"___gatsby\"", "gatsby"},
}

var emptyMountRe = regexp.MustCompile(`<div[^>]+id=["'](?:root|app|__next|__nuxt|main)["'][^>]*>\s*</div>`)

// DetectSPA reports whether a page looks like a client-rendered application
// whose content needs a browser to appear, and names the signal.
func DetectSPA(p model.CrawledPage) (bool, string) {
	hashRoutes := 0
	for _, l := range p.Links {
		if strings.Contains(l.Href, "#/") || strings.Contains(l.Href, "#!/") {
			hashRoutes++
		}
	}
	if hashRoutes >= 2 {
		return true, "hash_routing"
	}

	if len(strings.TrimSpace(p.Text)) >= spaTextThreshold {
		return false, ""
	}

	lower := strings.ToLower(p.HTML)
	for _, m := range spaMarkers {
		if strings.Contains(lower, m.marker) {
			return true, m.reason
		}
	}
	if emptyMountRe.MatchString(lower) {
		return true, "empty_mount"
	}
	return false, ""
}
