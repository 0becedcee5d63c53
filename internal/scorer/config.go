// Package scorer ranks the links of a fetched page by how likely they lead to
// staff, leadership or contact information.
package scorer

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Config holds keyword tiers and weights for navigation scoring.
type Config struct {
	HighTerms    []string
	MediumTerms  []string
	Phrases      []string
	GenericTerms []string

	HighExact       int
	HighSubstring   int
	HighPath        int
	MediumExact     int
	MediumSubstring int
	MediumPath      int
	PhraseBonus     int
	GenericPenalty  int
}

// DefaultConfig returns the keyword tiers used by the crawler.
func DefaultConfig() Config {
	return Config{
		HighTerms: []string{
			"staff", "team", "leadership", "board", "management", "directors",
			"faculty", "doctors", "people", "founders", "principal", "executives",
		},
		MediumTerms: []string{
			"about", "contact", "events", "partners", "administration",
			"who we are", "reach us", "locations",
		},
		Phrases: []string{
			"our team", "contact us", "about us", "meet the team",
			"leadership team", "our staff", "our people", "get in touch",
		},
		GenericTerms: []string{
			"home", "blog", "news", "login", "sign in", "cart", "privacy",
			"terms", "sitemap", "careers", "search",
		},

		HighExact:       10,
		HighSubstring:   6,
		HighPath:        4,
		MediumExact:     6,
		MediumSubstring: 3,
		MediumPath:      2,
		PhraseBonus:     5,
		GenericPenalty:  2,
	}
}

// Validate checks that the config can produce a meaningful ranking.
func (c Config) Validate() error {
	var errs []string
	if len(c.HighTerms) == 0 && len(c.MediumTerms) == 0 {
		errs = append(errs, "at least one keyword tier must be non-empty")
	}
	if c.HighExact < c.HighSubstring {
		errs = append(errs, fmt.Sprintf("high exact weight %d below substring weight %d", c.HighExact, c.HighSubstring))
	}
	if c.MediumExact < c.MediumSubstring {
		errs = append(errs, fmt.Sprintf("medium exact weight %d below substring weight %d", c.MediumExact, c.MediumSubstring))
	}
	if c.HighSubstring <= c.MediumSubstring {
		errs = append(errs, "high tier must outscore medium tier")
	}
	if c.GenericPenalty < 0 || c.PhraseBonus < 0 {
		errs = append(errs, "bonus and penalty must be non-negative")
	}
	if len(errs) > 0 {
		return eris.Errorf("scorer: invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}
