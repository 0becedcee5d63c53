package discovery

import (
	"net/url"
	"strings"
)

// DefaultBlocklist holds listing, review and social hosts. A result on one
// of these is a directory entry, not the organization's own site.
var DefaultBlocklist = []string{
	"facebook.com",
	"instagram.com",
	"linkedin.com",
	"twitter.com",
	"x.com",
	"youtube.com",
	"google.com",
	"justdial.com",
	"sulekha.com",
	"indiamart.com",
	"practo.com",
	"shiksha.com",
	"yelp.com",
	"tripadvisor.com",
	"wikipedia.org",
}

// IsDirectoryURL checks if a URL's hostname matches any entry in the blocklist.
func IsDirectoryURL(website string, blocklist []string) bool {
	u, err := url.Parse(website)
	if err != nil {
		return false
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")

	for _, blocked := range blocklist {
		blocked = strings.ToLower(blocked)
		if host == blocked || strings.HasSuffix(host, "."+blocked) {
			return true
		}
	}
	return false
}

// siteRoot strips query, fragment and tracking paths so two listings of
// the same site produce one target.
func siteRoot(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.TrimSpace(raw)
	}
	u.RawQuery = ""
	u.Fragment = ""
	if u.Path == "/" {
		u.Path = ""
	}
	return u.String()
}
