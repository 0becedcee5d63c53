package crawl

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// SameSite reports whether href is on the same registrable domain as base,
// so "www.acme.com" and "admissions.acme.com" match but "acme.co.uk" and
// "other.co.uk" do not.
func SameSite(base, href string) bool {
	a, ok := registrable(base)
	if !ok {
		return false
	}
	b, ok := registrable(href)
	return ok && a == b
}

func registrable(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", false
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		// IP literals and bare hosts such as localhost compare as-is.
		return host, true
	}
	return domain, true
}
