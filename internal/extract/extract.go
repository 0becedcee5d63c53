// Package extract finds contact candidates (emails, phone numbers and social
// profiles) in crawled page text and associates nearby person names with them.
// Everything here is pure and safe for concurrent use.
package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/sells-group/leadgen/internal/model"
)

// DefaultNameWindow is the number of characters searched on each side of a
// match for an associated name.
const DefaultNameWindow = 150

// DefaultCountryCode is prefixed to bare ten-digit phone numbers.
const DefaultCountryCode = "1"

// Options configures an Extractor.
type Options struct {
	NameWindow         int
	DefaultCountryCode string
}

// Extractor turns free text into contact candidates.
type Extractor struct {
	window int
	cc     string
}

// New creates an Extractor. Zero values in opts use the package defaults.
func New(opts Options) *Extractor {
	e := &Extractor{window: opts.NameWindow, cc: strings.TrimPrefix(strings.TrimSpace(opts.DefaultCountryCode), "+")}
	if e.window <= 0 {
		e.window = DefaultNameWindow
	}
	if e.cc == "" {
		e.cc = DefaultCountryCode
	}
	return e
}

var (
	emailRe = regexp.MustCompile(`(?i)\b[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}\b`)

	// International numbers with an explicit + or 00 prefix.
	intlPhoneRe = regexp.MustCompile(`(?:\+|\b00)\d{1,3}(?:[ .-]?\(?\d{1,4}\)?){2,5}`)

	// North American numbers: (555) 123-4567, 555.123.4567, +1 555 123 4567.
	nanpPhoneRe = regexp.MustCompile(`(?:\+?1[ .-]?)?(?:\(\d{3}\)|\b\d{3})[ .-]?\d{3}[ .-]?\d{4}\b`)

	socialRe = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.|m\.|web\.|api\.)?\b(?:facebook\.com|fb\.com|m\.me|messenger\.com|instagram\.com|wa\.me|wa\.link|whatsapp\.com|linkedin\.com|twitter\.com|x\.com|t\.me|youtube\.com|tiktok\.com)/[^\s"'<>()\[\]]+`)
)

var imageSuffixes = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp"}

type match struct {
	start, end int
	value      string
	channel    model.Channel
}

// Extract returns every contact candidate found in text, in text order.
// Values are deduplicated per channel within one call. It never returns nil.
func (e *Extractor) Extract(ownerID, sourceURL, text string) []model.ContactCandidate {
	out := []model.ContactCandidate{}
	if strings.TrimSpace(text) == "" {
		return out
	}

	matches := e.findEmails(text)
	matches = append(matches, e.findPhones(text)...)
	matches = append(matches, findSocials(text)...)
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].start < matches[j].start })

	seen := make(map[model.Channel]map[string]bool)
	for _, m := range matches {
		if seen[m.channel] == nil {
			seen[m.channel] = make(map[string]bool)
		}
		if seen[m.channel][m.value] {
			continue
		}
		seen[m.channel][m.value] = true

		c := model.ContactCandidate{
			OwnerEntityID: ownerID,
			Value:         m.value,
			Channel:       m.channel,
			SourceURL:     sourceURL,
		}
		if name, ok := nearestName(text, m.start, m.end, e.window); ok {
			c.AssociatedName = &name
		}
		out = append(out, c)
	}
	return out
}

func (e *Extractor) findEmails(text string) []match {
	var out []match
	for _, loc := range emailRe.FindAllStringIndex(text, -1) {
		v := strings.ToLower(strings.TrimRight(text[loc[0]:loc[1]], "."))
		if looksLikeImage(v) {
			continue
		}
		out = append(out, match{start: loc[0], end: loc[1], value: v, channel: model.ChannelEmail})
	}
	return out
}

func looksLikeImage(email string) bool {
	for _, s := range imageSuffixes {
		if strings.HasSuffix(email, s) {
			return true
		}
	}
	return false
}

func (e *Extractor) findPhones(text string) []match {
	var out []match
	var taken [][2]int
	overlaps := func(s, t int) bool {
		for _, r := range taken {
			if s < r[1] && t > r[0] {
				return true
			}
		}
		return false
	}

	for _, re := range []*regexp.Regexp{intlPhoneRe, nanpPhoneRe} {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			if overlaps(loc[0], loc[1]) || insideDigits(text, loc[0], loc[1]) {
				continue
			}
			norm, ok := NormalizePhone(text[loc[0]:loc[1]], e.cc)
			if !ok {
				continue
			}
			taken = append(taken, [2]int{loc[0], loc[1]})
			out = append(out, match{start: loc[0], end: loc[1], value: norm, channel: model.ChannelPhone})
		}
	}
	return out
}

// insideDigits rejects matches cut out of a longer digit run, such as part of
// an order number or a timestamp.
func insideDigits(text string, start, end int) bool {
	if start > 0 && isDigit(text[start-1]) {
		return true
	}
	return end < len(text) && isDigit(text[end])
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func findSocials(text string) []match {
	var out []match
	for _, loc := range socialRe.FindAllStringIndex(text, -1) {
		v := strings.TrimRight(text[loc[0]:loc[1]], ".,;:!?'\"")
		ch, ok := SocialChannel(v)
		if !ok {
			continue
		}
		out = append(out, match{start: loc[0], end: loc[0] + len(v), value: v, channel: ch})
	}
	return out
}
