package model

import "strings"

// ProfileStatus is the lifecycle status of a PartnerProfile.
type ProfileStatus string

const (
	StatusNew        ProfileStatus = "new"
	StatusEnriched   ProfileStatus = "enriched"
	StatusIncomplete ProfileStatus = "incomplete"
)

// PartnerProfile is the consolidated result for one entity. It is mutated by
// consolidation and enrichment only, and frozen before publishing.
type PartnerProfile struct {
	EntityID        string        `json:"entity_id"`
	DisplayName     string        `json:"display_name"`
	WebsiteURL      string        `json:"website_url"`
	EntityType      string        `json:"entity_type,omitempty"`
	Emails          StringSet     `json:"emails"`
	Phones          StringSet     `json:"phones"`
	InternalLinks   StringSet     `json:"internal_links"`
	ExternalLinks   StringSet     `json:"external_links"`
	KeyFacts        []string      `json:"key_facts"`
	DecisionMaker   *string       `json:"decision_maker,omitempty"`
	ChannelOfRecord *Channel      `json:"channel_of_record,omitempty"`
	DraftMessage    *string       `json:"draft_message,omitempty"`
	Status          ProfileStatus `json:"status"`

	// InvalidFields lists fields nulled after failing validation.
	InvalidFields []string `json:"invalid_fields,omitempty"`

	frozen bool
}

// NewPartnerProfile returns an empty profile for the target with status new.
func NewPartnerProfile(t Target) *PartnerProfile {
	return &PartnerProfile{
		EntityID:    t.EntityID,
		DisplayName: t.DisplayName,
		WebsiteURL:  t.SeedURL,
		EntityType:  t.EntityType,
		KeyFacts:    []string{},
		Status:      StatusNew,
	}
}

// HasContact reports whether at least one email or phone is known.
func (p *PartnerProfile) HasContact() bool {
	return p.Emails.Len() > 0 || p.Phones.Len() > 0
}

// AddKeyFact appends a fact unless it is blank or already present.
func (p *PartnerProfile) AddKeyFact(fact string) bool {
	if p.frozen {
		return false
	}
	fact = strings.TrimSpace(fact)
	if fact == "" {
		return false
	}
	for _, f := range p.KeyFacts {
		if strings.EqualFold(f, fact) {
			return false
		}
	}
	p.KeyFacts = append(p.KeyFacts, fact)
	return true
}

// AddContact routes a contact value into the set matching its channel.
func (p *PartnerProfile) AddContact(value string, ch Channel) bool {
	if p.frozen {
		return false
	}
	switch ch {
	case ChannelEmail:
		return p.Emails.Add(strings.ToLower(value))
	case ChannelPhone:
		return p.Phones.Add(value)
	case ChannelWhatsApp, ChannelInstagram, ChannelMessenger:
		return p.ExternalLinks.Add(value)
	case ChannelOther:
		if IsSocialURL(value) {
			return p.ExternalLinks.Add(value)
		}
		return p.InternalLinks.Add(value)
	default:
		return false
	}
}

// SetDecisionMaker records the decision maker when name is non-blank.
func (p *PartnerProfile) SetDecisionMaker(name string) {
	if p.frozen {
		return
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	p.DecisionMaker = &name
}

// SetChannelOfRecord records the preferred outreach channel.
func (p *PartnerProfile) SetChannelOfRecord(ch Channel) {
	if p.frozen || !ch.Valid() {
		return
	}
	p.ChannelOfRecord = &ch
}

// SetDraftMessage records the outreach draft.
func (p *PartnerProfile) SetDraftMessage(msg string) {
	if p.frozen {
		return
	}
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return
	}
	p.DraftMessage = &msg
}

// MarkInvalid records a field that failed validation. The caller is
// responsible for nulling the field itself.
func (p *PartnerProfile) MarkInvalid(field string) {
	if p.frozen {
		return
	}
	p.InvalidFields = append(p.InvalidFields, field)
}

// Refresh recomputes status after enrichment: enriched requires at least one
// contact value, at least one key fact and no invalid fields.
func (p *PartnerProfile) Refresh() {
	if p.frozen {
		return
	}
	if p.HasContact() && len(p.KeyFacts) > 0 && len(p.InvalidFields) == 0 {
		p.Status = StatusEnriched
		return
	}
	p.Status = StatusIncomplete
}

// Freeze makes the profile immutable through its methods.
func (p *PartnerProfile) Freeze() { p.frozen = true }

// Frozen reports whether Freeze has been called.
func (p *PartnerProfile) Frozen() bool { return p.frozen }

var socialDomains = []string{
	"facebook.com", "fb.com", "m.me", "messenger.com",
	"instagram.com",
	"whatsapp.com", "wa.me", "wa.link",
	"linkedin.com", "twitter.com", "x.com", "t.me",
	"youtube.com", "tiktok.com", "pinterest.com",
}

// SocialDomains returns the known social-media domains.
func SocialDomains() []string {
	out := make([]string, len(socialDomains))
	copy(out, socialDomains)
	return out
}

// IsSocialURL reports whether raw points at a known social-media domain.
func IsSocialURL(raw string) bool {
	host := hostOf(raw)
	if host == "" {
		return false
	}
	for _, d := range socialDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func hostOf(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	} else if strings.HasPrefix(s, "//") {
		s = s[2:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, "@"); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.Index(s, ":"); i >= 0 {
		s = s[:i]
	}
	return s
}
