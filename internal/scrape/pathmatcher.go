package scrape

import (
	"net/url"
	"path"
	"strings"
)

// defaultExcludePatterns skip pages that never carry staff or contact
// details, and file downloads anywhere on the site.
var defaultExcludePatterns = []string{
	"/blog/*",
	"/news/*",
	"/press/*",
	"/careers/*",
	"/shop/*",
	"/cart/*",
	"/checkout/*",
	"/tag/*",
	"/category/*",
	"/feed/*",
	"/wp-admin/*",
	"/wp-login.php",
	"/login",
	"*.pdf",
	"*.zip",
}

type pathRule struct {
	raw    string
	glob   string
	prefix string // set for "/dir/*" rules
	ext    string // set for "*.ext" rules
}

func compileRule(pattern string) pathRule {
	p := strings.ToLower(strings.TrimSpace(pattern))
	r := pathRule{raw: pattern, glob: p}
	switch {
	case strings.HasPrefix(p, "*.") && !strings.Contains(p, "/"):
		r.ext = p[1:]
	case strings.HasSuffix(p, "/*"):
		r.prefix = strings.TrimSuffix(p, "/*")
	}
	return r
}

func (r pathRule) match(urlPath string) bool {
	if r.ext != "" {
		return strings.HasSuffix(urlPath, r.ext)
	}
	if ok, _ := path.Match(r.glob, urlPath); ok {
		return true
	}
	return r.prefix != "" && (urlPath == r.prefix || strings.HasPrefix(urlPath, r.prefix+"/"))
}

// PathMatcher rejects URLs by path before any fetch. Patterns are
// case-insensitive globs:
//
//	"/blog/*"  matches "/blog" and everything below it
//	"/login"   matches that path only
//	"*.pdf"    matches a .pdf file at any depth
type PathMatcher struct {
	rules []pathRule
}

// NewPathMatcher compiles patterns, using the defaults when none are given.
func NewPathMatcher(patterns []string) *PathMatcher {
	if len(patterns) == 0 {
		patterns = defaultExcludePatterns
	}
	m := &PathMatcher{rules: make([]pathRule, 0, len(patterns))}
	for _, p := range patterns {
		if strings.TrimSpace(p) == "" {
			continue
		}
		m.rules = append(m.rules, compileRule(p))
	}
	return m
}

// Patterns returns the patterns as configured.
func (m *PathMatcher) Patterns() []string {
	out := make([]string, len(m.rules))
	for i, r := range m.rules {
		out[i] = r.raw
	}
	return out
}

// IsExcluded reports whether rawURL matches any rule. Unparseable URLs are
// excluded.
func (m *PathMatcher) IsExcluded(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	p := strings.ToLower(u.Path)
	for _, r := range m.rules {
		if r.match(p) {
			return true
		}
	}
	return false
}
