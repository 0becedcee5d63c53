package extract

import (
	"regexp"
	"strings"
)

var nameRe = regexp.MustCompile(`\b[A-Z][a-z]+(?:[ \t]+[A-Z][a-z]+)+\b`)

// Words that start capitalized phrases which are not person names. They are
// trimmed from both ends of a candidate; what remains must still have two
// words.
var nameStopwords = map[string]bool{
	"about": true, "all": true, "and": true, "apply": true, "call": true,
	"click": true, "contact": true, "copyright": true, "dear": true,
	"email": true, "follow": true, "for": true, "get": true, "home": true,
	"learn": true, "mail": true, "more": true, "our": true, "phone": true,
	"policy": true, "privacy": true, "read": true, "reserved": true,
	"rights": true, "send": true, "terms": true, "the": true, "this": true,
	"us": true, "visit": true, "website": true, "welcome": true, "with": true,
	"office": true, "hours": true, "reception": true, "admissions": true,
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
	"january": true, "february": true, "march": true, "april": true,
	"may": true, "june": true, "july": true, "august": true,
	"september": true, "october": true, "november": true, "december": true,
}

type nameSpan struct {
	start, end int
	name       string
}

// nearestName returns the capitalized multi-word name closest to the match
// [start, end) within window characters on either side. Equal distances
// prefer the earlier name.
func nearestName(text string, start, end, window int) (string, bool) {
	lo := start - window
	if lo < 0 {
		lo = 0
	}
	hi := end + window
	if hi > len(text) {
		hi = len(text)
	}

	best := ""
	bestDist := -1
	for _, n := range findNames(text[lo:hi]) {
		s, e := n.start+lo, n.end+lo
		var dist int
		switch {
		case e <= start:
			dist = start - e
		case s >= end:
			dist = s - end
		default:
			continue // overlaps the contact value itself
		}
		if bestDist < 0 || dist < bestDist {
			best, bestDist = n.name, dist
		}
	}
	return best, bestDist >= 0
}

func findNames(s string) []nameSpan {
	var out []nameSpan
	for _, loc := range nameRe.FindAllStringIndex(s, -1) {
		words := strings.Fields(s[loc[0]:loc[1]])
		first, last := 0, len(words)
		for first < last && nameStopwords[strings.ToLower(words[first])] {
			first++
		}
		for last > first && nameStopwords[strings.ToLower(words[last-1])] {
			last--
		}
		if last-first < 2 {
			continue
		}
		offset := loc[0] + strings.Index(s[loc[0]:loc[1]], words[first])
		name := strings.Join(words[first:last], " ")
		out = append(out, nameSpan{start: offset, end: offset + len(name), name: name})
	}
	return out
}
