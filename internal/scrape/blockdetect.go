package scrape

import (
	"net/http"
	"strings"
)

// BlockType describes the kind of block detected.
type BlockType string

const (
	BlockNone        BlockType = ""
	BlockCloudflare  BlockType = "cloudflare"
	BlockCaptcha     BlockType = "captcha"
	BlockRateLimited BlockType = "rate_limited"
	BlockJSShell     BlockType = "js_shell"
)

// Challenge pages are short; a long page that mentions a captcha is
// usually a real site with a protected form.
const (
	maxCaptchaPageBytes = 20_000
	maxShellPageBytes   = 2_000
)

var (
	challengeMarkers = []string{"checking your browser", "cf-browser-verification", "cf-challenge"}
	captchaMarkers   = []string{"captcha", "recaptcha", "hcaptcha"}
)

// DetectBlock checks a response for signs of anti-bot protection. resp may be
// nil when only rendered markup is available.
func DetectBlock(resp *http.Response, body []byte) (bool, BlockType) {
	if bt := blockFromResponse(resp); bt != BlockNone {
		return true, bt
	}
	if len(body) == 0 {
		return false, BlockNone
	}

	lower := strings.ToLower(string(body))
	switch {
	case containsAny(lower, challengeMarkers...),
		strings.Contains(lower, "cloudflare") && strings.Contains(lower, "challenge"):
		return true, BlockCloudflare
	case len(body) < maxCaptchaPageBytes && containsAny(lower, captchaMarkers...) &&
		!strings.Contains(lower, "<form"):
		return true, BlockCaptcha
	case len(body) < maxShellPageBytes && isJSShell(lower):
		return true, BlockJSShell
	}
	return false, BlockNone
}

func blockFromResponse(resp *http.Response) BlockType {
	if resp == nil {
		return BlockNone
	}
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return BlockRateLimited
	case http.StatusForbidden, http.StatusServiceUnavailable:
		if resp.Header.Get("cf-ray") != "" || resp.Header.Get("cf-cache-status") != "" ||
			strings.EqualFold(resp.Header.Get("server"), "cloudflare") {
			return BlockCloudflare
		}
	}
	return BlockNone
}

func isJSShell(lower string) bool {
	if strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") {
		return true
	}
	return strings.Contains(lower, `meta http-equiv="refresh"`)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
