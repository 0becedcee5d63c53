// Package consolidate merges raw contact candidates into one partner profile
// per entity.
package consolidate

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/model"
)

// Consolidate groups candidates by owning entity and routes every value into
// the profile set matching its channel. Sets absorb duplicates. Every target
// gets a profile, even with no candidates; candidates owned by an unknown
// entity still produce a profile named after the entity id. All profiles
// have status new.
//
// The page a non-social contact was found on is kept as an internal link.
//
// When candidates carry associated names, the name seen most often becomes
// the profile's provisional decision maker.
func Consolidate(targets []model.Target, candidates []model.ContactCandidate) map[string]*model.PartnerProfile {
	profiles := make(map[string]*model.PartnerProfile, len(targets))
	for _, t := range targets {
		if _, ok := profiles[t.EntityID]; ok {
			continue
		}
		profiles[t.EntityID] = model.NewPartnerProfile(t)
	}

	names := make(map[string]*nameTally)
	for _, c := range candidates {
		if c.OwnerEntityID == "" || strings.TrimSpace(c.Value) == "" {
			continue
		}
		p, ok := profiles[c.OwnerEntityID]
		if !ok {
			zap.L().Debug("consolidate: candidate for unknown entity",
				zap.String("entity_id", c.OwnerEntityID),
				zap.String("source_url", c.SourceURL),
			)
			p = model.NewPartnerProfile(model.Target{EntityID: c.OwnerEntityID, DisplayName: c.OwnerEntityID})
			profiles[c.OwnerEntityID] = p
		}
		p.AddContact(c.Value, c.Channel)
		if c.SourceURL != "" && !c.Channel.IsSocial() && !model.IsSocialURL(c.Value) {
			p.AddContact(c.SourceURL, model.ChannelOther)
		}

		if c.AssociatedName != nil {
			tally, ok := names[c.OwnerEntityID]
			if !ok {
				tally = &nameTally{counts: make(map[string]int)}
				names[c.OwnerEntityID] = tally
			}
			tally.add(*c.AssociatedName)
		}
	}

	for id, tally := range names {
		if name := tally.best(); name != "" {
			profiles[id].SetDecisionMaker(name)
		}
	}
	return profiles
}

// Ordered returns the profiles in target order followed by any profiles for
// unknown entities sorted by id.
func Ordered(targets []model.Target, profiles map[string]*model.PartnerProfile) []*model.PartnerProfile {
	out := make([]*model.PartnerProfile, 0, len(profiles))
	seen := make(map[string]bool, len(profiles))
	for _, t := range targets {
		p, ok := profiles[t.EntityID]
		if !ok || seen[t.EntityID] {
			continue
		}
		seen[t.EntityID] = true
		out = append(out, p)
	}

	var rest []string
	for id := range profiles {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	for _, id := range rest {
		out = append(out, profiles[id])
	}
	return out
}

type nameTally struct {
	order  []string
	counts map[string]int
}

func (n *nameTally) add(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	if _, ok := n.counts[name]; !ok {
		n.order = append(n.order, name)
	}
	n.counts[name]++
}

// best returns the most frequent name; ties go to the first seen.
func (n *nameTally) best() string {
	var top string
	for _, name := range n.order {
		if top == "" || n.counts[name] > n.counts[top] {
			top = name
		}
	}
	return top
}
