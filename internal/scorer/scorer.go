package scorer

import (
	"net/url"
	"path"
	"sort"
	"strings"
	"unicode"

	"github.com/sells-group/leadgen/internal/model"
)

// DefaultDepth is the number of links returned when the caller passes no
// positive limit.
const DefaultDepth = 1

// Scored is a link with its navigation score.
type Scored struct {
	Link  model.Link
	Score int
}

var webSchemes = map[string]bool{"": true, "http": true, "https": true}

var downloadExts = map[string]bool{
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".ppt": true, ".pptx": true, ".zip": true, ".rar": true, ".gz": true,
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".svg": true,
	".webp": true, ".mp3": true, ".mp4": true, ".csv": true, ".exe": true,
}

// Scorer ranks links with a fixed Config. It holds no mutable state and is
// safe for concurrent use.
type Scorer struct {
	cfg Config
}

// New creates a Scorer. A config that fails validation is replaced with
// DefaultConfig.
func New(cfg Config) *Scorer {
	if cfg.Validate() != nil {
		cfg = DefaultConfig()
	}
	return &Scorer{cfg: cfg}
}

var defaultScorer = New(DefaultConfig())

// RankLinks ranks links with the default config and returns at most limit
// hrefs, highest score first.
func RankLinks(links []model.Link, limit int) []string {
	return defaultScorer.Top(links, limit)
}

// Top returns at most limit hrefs, highest score first.
func (s *Scorer) Top(links []model.Link, limit int) []string {
	if limit <= 0 {
		limit = DefaultDepth
	}
	ranked := s.Rank(links)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.Link.Href
	}
	return out
}

// Rank scores every eligible link and returns those with a positive score,
// highest first. Equal scores keep document order and duplicate hrefs keep
// their first occurrence.
func (s *Scorer) Rank(links []model.Link) []Scored {
	seen := make(map[string]bool, len(links))
	ranked := make([]Scored, 0, len(links))
	for _, l := range links {
		key := dedupKey(l.Href)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true

		if Excluded(l.Href) {
			continue
		}
		score := s.Score(l)
		if score <= 0 {
			continue
		}
		ranked = append(ranked, Scored{Link: l, Score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// Score returns the raw score of one link. Exclusion is not applied.
func (s *Scorer) Score(l model.Link) int {
	text := normalize(l.Text)
	p := normalize(hrefPath(l.Href))

	score := tierScore(text, p, s.cfg.HighTerms, s.cfg.HighExact, s.cfg.HighSubstring, s.cfg.HighPath) +
		tierScore(text, p, s.cfg.MediumTerms, s.cfg.MediumExact, s.cfg.MediumSubstring, s.cfg.MediumPath)

	for _, phrase := range s.cfg.Phrases {
		if containsTerm(text, phrase) || containsTerm(p, phrase) {
			score += s.cfg.PhraseBonus
		}
	}

	for _, g := range s.cfg.GenericTerms {
		if containsTerm(text, g) || containsTerm(p, g) {
			score -= s.cfg.GenericPenalty
			break
		}
	}
	return score
}

func tierScore(text, p string, terms []string, exact, substring, pathWeight int) int {
	score := 0
	for _, term := range terms {
		term = normalize(term)
		switch {
		case text == term:
			score += exact
		case containsTerm(text, term):
			score += substring
		}
		if containsTerm(p, term) {
			score += pathWeight
		}
	}
	return score
}

// Excluded reports whether href can never be a navigation candidate: a
// non-web scheme, a file download or a social-media profile.
func Excluded(href string) bool {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return true
	}
	u, err := url.Parse(href)
	if err != nil {
		return true
	}
	if !webSchemes[strings.ToLower(u.Scheme)] {
		return true
	}
	if downloadExts[strings.ToLower(path.Ext(u.Path))] {
		return true
	}
	return model.IsSocialURL(href)
}

func dedupKey(href string) string {
	href = strings.TrimSpace(href)
	if i := strings.Index(href, "#"); i > 0 {
		href = href[:i]
	}
	return strings.TrimSuffix(href, "/")
}

func hrefPath(href string) string {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return u.Path
}

// normalize lowercases s and turns every non-alphanumeric run into a single
// space, so "Our-Team" and "our team" compare equal.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// containsTerm reports whether term occurs in s on word boundaries. Both are
// expected to be normalized.
func containsTerm(s, term string) bool {
	if s == "" || term == "" {
		return false
	}
	return strings.Contains(" "+s+" ", " "+term+" ")
}
