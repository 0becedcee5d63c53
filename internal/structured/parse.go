package structured

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

// Strategy names the parse step that produced a value.
type Strategy string

const (
	StrategyWhole    Strategy = "whole"
	StrategyBalanced Strategy = "balanced"
	StrategyFenced   Strategy = "fenced"
	StrategyFields   Strategy = "fields"
)

var fencedRe = regexp.MustCompile("(?s)```(?:json|JSON)?[ \t]*\r?\n?(.*?)```")

// Parse decodes reply into T, trying the whole reply, then the first
// balanced JSON block, then a fenced code block and finally a scrape of the
// named string fields. The first strategy that decodes wins.
func Parse[T any](reply string, fields []string) (T, Strategy, bool) {
	var zero T

	if v, ok := decode[T](reply); ok {
		return v, StrategyWhole, true
	}
	if block, ok := firstBalanced(reply); ok {
		if v, ok := decode[T](block); ok {
			return v, StrategyBalanced, true
		}
	}
	for _, m := range fencedRe.FindAllStringSubmatch(reply, -1) {
		if v, ok := decode[T](m[1]); ok {
			return v, StrategyFenced, true
		}
	}
	if scraped := scrapeFields(reply, fields); len(scraped) > 0 {
		raw, err := json.Marshal(scraped)
		if err == nil {
			if v, ok := decode[T](string(raw)); ok {
				return v, StrategyFields, true
			}
		}
	}
	return zero, "", false
}

func decode[T any](s string) (T, bool) {
	var v T
	s = strings.TrimSpace(s)
	if s == "" || (s[0] != '{' && s[0] != '[') {
		return v, false
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	if err := dec.Decode(&v); err != nil {
		return v, false
	}
	if dec.More() {
		return v, false
	}
	return v, true
}

// firstBalanced returns the first {...} or [...] block, matching brackets
// outside of JSON strings.
func firstBalanced(s string) (string, bool) {
	start := strings.IndexAny(s, "{[")
	for start >= 0 {
		if end, ok := matchBracket(s, start); ok {
			return s[start : end+1], true
		}
		next := strings.IndexAny(s[start+1:], "{[")
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

func matchBracket(s string, start int) (int, bool) {
	var stack []byte
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return 0, false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// scrapeFields pulls "key": "value" pairs, or key: value lines, for the
// given keys out of free text.
func scrapeFields(reply string, fields []string) map[string]any {
	out := make(map[string]any)
	for _, key := range fields {
		q := regexp.QuoteMeta(key)
		quoted := regexp.MustCompile(`"` + q + `"\s*:\s*"((?:[^"\\]|\\.)*)"`)
		if m := quoted.FindStringSubmatch(reply); m != nil {
			var v string
			if err := json.Unmarshal([]byte(`"`+m[1]+`"`), &v); err == nil {
				out[key] = v
				continue
			}
		}
		line := regexp.MustCompile(`(?im)^[ \t]*[-*]?[ \t]*\**` + q + `\**[ \t]*[:=][ \t]*(.+?)[ \t]*$`)
		if m := line.FindStringSubmatch(reply); m != nil {
			v := strings.Trim(m[1], `"',*`)
			if v != "" && !strings.EqualFold(v, "null") && !strings.EqualFold(v, "none") {
				out[key] = v
			}
		}
	}
	return out
}
