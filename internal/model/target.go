package model

import (
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Entity types inferred from an organization's display name.
const (
	EntityEducational = "Educational Institution"
	EntityMedical     = "Medical Facility"
	EntityTraining    = "Training Center"
	EntityBusiness    = "Business"
)

// Target is one site to crawl. Targets are created by discovery and are
// never mutated afterwards.
type Target struct {
	EntityID    string `json:"entity_id" yaml:"entity_id"`
	SeedURL     string `json:"seed_url" yaml:"seed_url"`
	DisplayName string `json:"display_name" yaml:"display_name"`
	EntityType  string `json:"entity_type,omitempty" yaml:"entity_type"`
}

// NewTarget builds a Target with a stable entity id derived from the seed
// URL's host and path, so the same site always groups under the same id.
func NewTarget(seedURL, displayName string) Target {
	seed := NormalizeURL(seedURL)
	return Target{
		EntityID:    EntityIDFor(seed),
		SeedURL:     seed,
		DisplayName: strings.TrimSpace(displayName),
		EntityType:  InferEntityType(displayName),
	}
}

// EntityIDFor returns the deterministic id used for a seed URL.
func EntityIDFor(seedURL string) string {
	key := strings.ToLower(NormalizeURL(seedURL))
	if u, err := url.Parse(key); err == nil && u.Host != "" {
		key = strings.TrimPrefix(u.Host, "www.") + strings.TrimSuffix(u.Path, "/")
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

// NormalizeURL adds a scheme when missing and trims surrounding whitespace.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	return raw
}

var entityTypeKeywords = []struct {
	kind     string
	keywords []string
}{
	{EntityEducational, []string{"school", "college", "university", "academy"}},
	{EntityMedical, []string{"hospital", "clinic", "medical", "diagnostic", "health"}},
	{EntityTraining, []string{"coaching", "training", "institute", "center", "centre"}},
}

// InferEntityType guesses an entity type from its name. Unknown names map to
// EntityBusiness.
func InferEntityType(name string) string {
	lower := strings.ToLower(name)
	for _, group := range entityTypeKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(lower, kw) {
				return group.kind
			}
		}
	}
	return EntityBusiness
}
