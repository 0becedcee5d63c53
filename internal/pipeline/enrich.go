package pipeline

import (
	"context"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/sells-group/leadgen/internal/extract"
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/structured"
)

const enrichInstructions = `From the website text below, identify:
- decision_maker: the full name of the person who decides on partnerships (owner, director, principal, head of admissions), or null.
- contact_info: the single best way to reach that person or the organization (email, phone or messaging link), or null.
- contact_channel: one of Email, Phone, WhatsApp, Instagram, Messenger, Other, matching contact_info, or null.
- key_facts: short factual statements about the organization (services, size, specialties, accreditations).
The "Contact Information" section lists contacts found on the site with nearby names.`

// EnrichmentFacts is the structured extraction target for one entity. The
// zero value (all null) is the default when extraction fails.
type EnrichmentFacts struct {
	DecisionMaker  *string  `json:"decision_maker" jsonschema:"full name of the partnership decision maker, or null"`
	ContactInfo    *string  `json:"contact_info" jsonschema:"best contact value for the decision maker or organization, or null"`
	ContactChannel *string  `json:"contact_channel" jsonschema:"Email, Phone, WhatsApp, Instagram, Messenger or Other"`
	KeyFacts       []string `json:"key_facts" jsonschema:"short factual statements about the organization"`
}

const maxNameLen = 80

// Validate nulls fields that cannot be right and returns their names.
func (f *EnrichmentFacts) Validate() []string {
	var invalid []string

	if f.DecisionMaker != nil {
		name := strings.TrimSpace(*f.DecisionMaker)
		switch {
		case name == "" || strings.EqualFold(name, "null") || strings.EqualFold(name, "unknown"):
			f.DecisionMaker = nil
		case !plausibleName(name):
			f.DecisionMaker = nil
			invalid = append(invalid, "decision_maker")
		default:
			f.DecisionMaker = &name
		}
	}

	if f.ContactChannel != nil {
		if _, err := model.ParseChannel(*f.ContactChannel); err != nil {
			f.ContactChannel = nil
			invalid = append(invalid, "contact_channel")
		}
	}

	if f.ContactInfo != nil {
		v := strings.TrimSpace(*f.ContactInfo)
		if v == "" || strings.EqualFold(v, "null") {
			f.ContactInfo = nil
		} else {
			f.ContactInfo = &v
		}
	}

	facts := f.KeyFacts[:0]
	for _, k := range f.KeyFacts {
		if k = strings.TrimSpace(k); k != "" {
			facts = append(facts, k)
		}
	}
	f.KeyFacts = facts

	return invalid
}

// plausibleName rejects values that are clearly not a person's name.
func plausibleName(name string) bool {
	if len(name) > maxNameLen || strings.ContainsAny(name, "@/:") {
		return false
	}
	letters := 0
	for _, r := range name {
		switch {
		case unicode.IsDigit(r):
			return false
		case unicode.IsLetter(r):
			letters++
		}
	}
	return letters >= 2
}

// enrichAll runs structured extraction once per entity. Documents of
// duplicate targets are joined so each profile has a single writer.
func (r *Runner) enrichAll(ctx context.Context, items []crawled, profiles map[string]*model.PartnerProfile, out *Outcome) {
	var order []string
	docs := make(map[string][]string)
	for _, c := range items {
		id := c.target.EntityID
		if _, ok := docs[id]; !ok {
			order = append(order, id)
		}
		if !c.placeholder {
			docs[id] = append(docs[id], c.document)
		}
	}

	sem := semaphore.NewWeighted(int64(r.opts.Concurrency))
	errs := &errorList{}
	for _, id := range order {
		p := profiles[id]
		if p == nil {
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		go func() {
			defer sem.Release(1)
			if err := r.enrichProfile(ctx, p, strings.Join(docs[id], "\n\n")); err != nil {
				errs.add("enrich %s: %v", id, err)
			}
		}()
	}
	_ = sem.Acquire(context.WithoutCancel(ctx), int64(r.opts.Concurrency))
	out.Errors = append(out.Errors, errs.errs...)

	// Profiles never reached still get a status.
	for _, p := range profiles {
		if p.Status == model.StatusNew {
			p.Refresh()
		}
	}
}

// enrichProfile merges extracted facts into p. An extraction failure is
// logged and the all-null default is merged instead.
func (r *Runner) enrichProfile(ctx context.Context, p *model.PartnerProfile, document string) (err error) {
	defer recoverTask(&err, "enrich", p.EntityID)

	var facts EnrichmentFacts
	if r.deps.Adapter != nil && document != "" {
		facts, err = structured.Extract[EnrichmentFacts](ctx, r.deps.Adapter, structured.Request{
			Instructions:  enrichInstructions,
			Content:       document,
			Focus:         "director principal owner founder head contact email phone whatsapp",
			FieldScrapers: []string{"decision_maker", "contact_info", "contact_channel"},
		})
		if err != nil {
			zap.L().Warn("pipeline: enrichment extraction failed, using defaults",
				zap.String("entity_id", p.EntityID),
				zap.Error(err),
			)
			facts = EnrichmentFacts{}
		}
	}

	invalid := structured.Validate(&facts)
	r.applyFacts(p, facts, invalid)
	return err
}

func (r *Runner) applyFacts(p *model.PartnerProfile, f EnrichmentFacts, invalid []string) {
	for _, field := range invalid {
		p.MarkInvalid(field)
	}
	if f.DecisionMaker != nil {
		p.SetDecisionMaker(*f.DecisionMaker)
	}
	if f.ContactInfo != nil {
		value := *f.ContactInfo
		ch := extract.ClassifyValue(value)
		record := ch
		if f.ContactChannel != nil {
			record = r.declaredChannel(p, ch, *f.ContactChannel)
		}
		if ch == model.ChannelOther {
			ch = record
		}
		if ch == model.ChannelPhone {
			if norm, ok := extract.NormalizePhone(value, r.opts.DefaultCountryCode); ok {
				value = norm
			}
		}
		p.AddContact(value, ch)
		p.SetChannelOfRecord(record)
	}
	for _, k := range f.KeyFacts {
		p.AddKeyFact(k)
	}
	p.Refresh()
}

// declaredChannel returns the outreach channel for a contact value. The
// channel the service declared is trusted only when the value does not say
// otherwise; a phone number may be reached over WhatsApp. A contradiction
// keeps the classified channel and marks contact_channel invalid.
func (r *Runner) declaredChannel(p *model.PartnerProfile, classified model.Channel, declared string) model.Channel {
	parsed, err := model.ParseChannel(declared)
	if err != nil {
		return classified
	}
	switch {
	case classified == model.ChannelOther, classified == parsed:
		return parsed
	case classified == model.ChannelPhone && parsed == model.ChannelWhatsApp:
		return parsed
	}
	zap.L().Debug("pipeline: declared contact channel contradicts value",
		zap.String("entity_id", p.EntityID),
		zap.String("declared", declared),
		zap.Stringer("classified", classified),
	)
	p.MarkInvalid("contact_channel")
	return classified
}
