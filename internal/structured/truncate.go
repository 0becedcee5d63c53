package structured

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// TruncateByRelevance keeps content under limit bytes. Instead of cutting
// blindly it splits the content into sections (headers, page separators or
// blank lines), scores each by keyword overlap with focus and keeps the
// best-scoring sections in their original order. Without usable keywords or
// sections it falls back to a hard cut on a rune boundary.
func TruncateByRelevance(content, focus string, limit int) string {
	if limit <= 0 || len(content) <= limit {
		return content
	}

	keywords := extractKeywords(focus)
	if len(keywords) == 0 {
		return cut(content, limit)
	}
	sections := splitSections(content)
	if len(sections) <= 1 {
		return cut(content, limit)
	}

	type scoredSection struct {
		idx   int
		score int
	}
	scored := make([]scoredSection, len(sections))
	for i, sec := range sections {
		lower := strings.ToLower(sec)
		score := 0
		for _, kw := range keywords {
			score += strings.Count(lower, kw)
		}
		scored[i] = scoredSection{idx: i, score: score}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	selected := make(map[int]bool)
	total := 0
	for _, s := range scored {
		size := len(sections[s.idx]) + 2
		if total+size > limit {
			continue
		}
		selected[s.idx] = true
		total += size
	}
	if len(selected) == 0 {
		return cut(content, limit)
	}

	var sb strings.Builder
	for i, sec := range sections {
		if !selected[i] {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(sec)
	}
	return sb.String()
}

func cut(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "was": true,
	"were": true, "been": true, "have": true, "has": true, "had": true,
	"this": true, "that": true, "with": true, "from": true, "what": true,
	"how": true, "does": true, "which": true, "where": true, "when": true,
	"who": true, "why": true, "can": true, "will": true, "not": true,
}

// extractKeywords returns lowercase words of 3+ characters from text,
// excluding common stop words.
func extractKeywords(text string) []string {
	var keywords []string
	seen := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, "?.,!;:'\"()[]{}")
		if len(w) < 3 || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		keywords = append(keywords, w)
	}
	return keywords
}

// splitSections splits text at markdown headers, page separators and
// paragraph breaks.
func splitSections(content string) []string {
	var sections []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			sections = append(sections, s)
		}
		current.Reset()
	}
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, "#") || strings.HasPrefix(line, "--- Page:") || strings.TrimSpace(line) == "" {
			flush()
		}
		current.WriteString(line)
		current.WriteString("\n")
	}
	flush()
	return sections
}
