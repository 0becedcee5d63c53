package consolidate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen/internal/model"
)

func strp(s string) *string { return &s }

func candidate(owner, value string, ch model.Channel) model.ContactCandidate {
	return model.ContactCandidate{OwnerEntityID: owner, Value: value, Channel: ch}
}

func foundOn(c model.ContactCandidate, sourceURL string) model.ContactCandidate {
	c.SourceURL = sourceURL
	return c
}

func TestConsolidate_DedupAndRouting(t *testing.T) {
	t.Parallel()
	sunrise := model.NewTarget("https://sunrise.edu", "Sunrise Academy")

	cands := []model.ContactCandidate{
		candidate(sunrise.EntityID, "info@sunrise.edu", model.ChannelEmail),
		candidate(sunrise.EntityID, "INFO@sunrise.edu", model.ChannelEmail),
		candidate(sunrise.EntityID, " info@sunrise.edu ", model.ChannelEmail),
		candidate(sunrise.EntityID, "+15551234567", model.ChannelPhone),
		candidate(sunrise.EntityID, "+15551234567", model.ChannelPhone),
		candidate(sunrise.EntityID, "https://wa.me/15551234567", model.ChannelWhatsApp),
		candidate(sunrise.EntityID, "https://instagram.com/sunrise", model.ChannelInstagram),
		candidate(sunrise.EntityID, "https://www.facebook.com/sunrise", model.ChannelOther),
		candidate(sunrise.EntityID, "https://sunrise.edu/contact", model.ChannelOther),
		candidate(sunrise.EntityID, "https://sunrise.edu/contact", model.ChannelOther),
	}

	profiles := Consolidate([]model.Target{sunrise}, cands)
	require.Len(t, profiles, 1)
	p := profiles[sunrise.EntityID]
	require.NotNil(t, p)

	assert.Equal(t, []string{"info@sunrise.edu"}, p.Emails.Values())
	assert.Equal(t, []string{"+15551234567"}, p.Phones.Values())
	assert.Equal(t, []string{
		"https://wa.me/15551234567",
		"https://instagram.com/sunrise",
		"https://www.facebook.com/sunrise",
	}, p.ExternalLinks.Values())
	assert.Equal(t, []string{"https://sunrise.edu/contact"}, p.InternalLinks.Values())
	assert.Equal(t, model.StatusNew, p.Status)
	assert.Equal(t, "Sunrise Academy", p.DisplayName)
	assert.Equal(t, "https://sunrise.edu", p.WebsiteURL)
}

func TestConsolidate_SourcePagesBecomeInternalLinks(t *testing.T) {
	t.Parallel()
	acme := model.NewTarget("https://acme.com", "Acme Dental")

	profiles := Consolidate([]model.Target{acme}, []model.ContactCandidate{
		foundOn(candidate(acme.EntityID, "hello@acme.com", model.ChannelEmail), "https://acme.com"),
		foundOn(candidate(acme.EntityID, "+15551234567", model.ChannelPhone), "https://acme.com/contact-us"),
		foundOn(candidate(acme.EntityID, "hello@acme.com", model.ChannelEmail), "https://acme.com/contact-us"),
		foundOn(candidate(acme.EntityID, "https://facebook.com/acme", model.ChannelMessenger), "https://acme.com/about"),
		foundOn(candidate(acme.EntityID, "https://linkedin.com/company/acme", model.ChannelOther), "https://acme.com/team"),
	})
	p := profiles[acme.EntityID]
	require.NotNil(t, p)

	assert.Equal(t, []string{"https://acme.com", "https://acme.com/contact-us"}, p.InternalLinks.Values())
	assert.Equal(t, []string{"https://facebook.com/acme", "https://linkedin.com/company/acme"}, p.ExternalLinks.Values())
}

func TestConsolidate_EveryTargetPresent(t *testing.T) {
	t.Parallel()
	a := model.NewTarget("https://a.example", "Alpha School")
	b := model.NewTarget("https://b.example", "Beta Clinic")

	profiles := Consolidate([]model.Target{a, b}, []model.ContactCandidate{
		candidate(a.EntityID, "hello@a.example", model.ChannelEmail),
	})
	require.Len(t, profiles, 2)

	empty := profiles[b.EntityID]
	require.NotNil(t, empty)
	assert.Zero(t, empty.Emails.Len())
	assert.Zero(t, empty.Phones.Len())
	assert.Zero(t, empty.InternalLinks.Len())
	assert.Zero(t, empty.ExternalLinks.Len())
	assert.Equal(t, model.StatusNew, empty.Status)
	assert.Equal(t, model.EntityMedical, empty.EntityType)
}

func TestConsolidate_UnknownEntity(t *testing.T) {
	t.Parallel()
	profiles := Consolidate(nil, []model.ContactCandidate{
		candidate("orphan", "a@orphan.example", model.ChannelEmail),
		candidate("", "ignored@example.com", model.ChannelEmail),
		candidate("orphan", "   ", model.ChannelPhone),
	})
	require.Len(t, profiles, 1)
	p := profiles["orphan"]
	require.NotNil(t, p)
	assert.Equal(t, "orphan", p.DisplayName)
	assert.Equal(t, []string{"a@orphan.example"}, p.Emails.Values())
	assert.Zero(t, p.Phones.Len())
}

func TestConsolidate_DuplicateTargets(t *testing.T) {
	t.Parallel()
	a := model.NewTarget("https://a.example", "Alpha")
	profiles := Consolidate([]model.Target{a, a}, nil)
	assert.Len(t, profiles, 1)
}

func TestConsolidate_DecisionMaker(t *testing.T) {
	t.Parallel()
	a := model.NewTarget("https://a.example", "Alpha")

	c1 := candidate(a.EntityID, "jane@a.example", model.ChannelEmail)
	c1.AssociatedName = strp("Jane Doe")
	c2 := candidate(a.EntityID, "+15550001111", model.ChannelPhone)
	c2.AssociatedName = strp("Ravi Rao")
	c3 := candidate(a.EntityID, "+15550002222", model.ChannelPhone)
	c3.AssociatedName = strp("Ravi Rao")

	profiles := Consolidate([]model.Target{a}, []model.ContactCandidate{c1, c2, c3})
	p := profiles[a.EntityID]
	require.NotNil(t, p.DecisionMaker)
	assert.Equal(t, "Ravi Rao", *p.DecisionMaker)

	tie := Consolidate([]model.Target{a}, []model.ContactCandidate{c1, c2})
	require.NotNil(t, tie[a.EntityID].DecisionMaker)
	assert.Equal(t, "Jane Doe", *tie[a.EntityID].DecisionMaker)
}

func TestOrdered(t *testing.T) {
	t.Parallel()
	a := model.NewTarget("https://a.example", "Alpha")
	b := model.NewTarget("https://b.example", "Beta")

	profiles := Consolidate([]model.Target{b, a}, []model.ContactCandidate{
		candidate("zzz", "z@z.example", model.ChannelEmail),
		candidate("mmm", "m@m.example", model.ChannelEmail),
	})

	var ids []string
	for _, p := range Ordered([]model.Target{b, a}, profiles) {
		ids = append(ids, p.EntityID)
	}
	assert.Equal(t, []string{b.EntityID, a.EntityID, "mmm", "zzz"}, ids)
}
