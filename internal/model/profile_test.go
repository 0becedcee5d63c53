package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringSet_Dedup(t *testing.T) {
	t.Parallel()

	var s StringSet
	assert.True(t, s.Add("a@acme.com"))
	assert.False(t, s.Add("a@acme.com"))
	assert.False(t, s.Add("  a@acme.com "))
	assert.False(t, s.Add(""))
	assert.True(t, s.Add("b@acme.com"))

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []string{"a@acme.com", "b@acme.com"}, s.Values())
	assert.True(t, s.Has("b@acme.com"))
}

func TestStringSet_JSON(t *testing.T) {
	t.Parallel()

	var empty StringSet
	data, err := json.Marshal(empty)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))

	var s StringSet
	require.NoError(t, json.Unmarshal([]byte(`["x","y","x"]`), &s))
	assert.Equal(t, []string{"x", "y"}, s.Values())
}

func TestStringSet_CloneIsIndependent(t *testing.T) {
	t.Parallel()

	s := NewStringSet("a")
	c := s.Clone()
	c.Add("b")
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 2, c.Len())
}

func TestPartnerProfile_AddContactRouting(t *testing.T) {
	t.Parallel()

	p := NewPartnerProfile(NewTarget("acme.com", "Acme"))
	p.AddContact("Contact@Acme.com", ChannelEmail)
	p.AddContact("+15551234567", ChannelPhone)
	p.AddContact("https://facebook.com/acme", ChannelMessenger)
	p.AddContact("https://www.linkedin.com/company/acme", ChannelOther)
	p.AddContact("https://acme.com/team", ChannelOther)

	assert.Equal(t, []string{"contact@acme.com"}, p.Emails.Values())
	assert.Equal(t, []string{"+15551234567"}, p.Phones.Values())
	assert.Equal(t, []string{"https://facebook.com/acme", "https://www.linkedin.com/company/acme"}, p.ExternalLinks.Values())
	assert.Equal(t, []string{"https://acme.com/team"}, p.InternalLinks.Values())
	assert.Equal(t, StatusNew, p.Status)
}

func TestPartnerProfile_Refresh(t *testing.T) {
	t.Parallel()

	p := NewPartnerProfile(NewTarget("acme.com", "Acme"))
	p.Refresh()
	assert.Equal(t, StatusIncomplete, p.Status)

	p.AddContact("info@acme.com", ChannelEmail)
	p.Refresh()
	assert.Equal(t, StatusIncomplete, p.Status, "contact without key fact")

	p.AddKeyFact("Founded in 1999")
	p.Refresh()
	assert.Equal(t, StatusEnriched, p.Status)

	p.MarkInvalid("decision_maker")
	p.Refresh()
	assert.Equal(t, StatusIncomplete, p.Status)
}

func TestPartnerProfile_KeyFactsDedupCaseInsensitive(t *testing.T) {
	t.Parallel()

	p := NewPartnerProfile(NewTarget("acme.com", "Acme"))
	assert.True(t, p.AddKeyFact("Offers IELTS coaching"))
	assert.False(t, p.AddKeyFact("offers ielts coaching"))
	assert.False(t, p.AddKeyFact("   "))
	assert.Len(t, p.KeyFacts, 1)
}

func TestPartnerProfile_FreezeBlocksMutation(t *testing.T) {
	t.Parallel()

	p := NewPartnerProfile(NewTarget("acme.com", "Acme"))
	p.Freeze()
	assert.True(t, p.Frozen())
	assert.False(t, p.AddContact("a@acme.com", ChannelEmail))
	assert.False(t, p.AddKeyFact("fact"))
	p.SetDecisionMaker("Jane Doe")
	assert.Nil(t, p.DecisionMaker)
	p.Refresh()
	assert.Equal(t, StatusNew, p.Status)
}

func TestIsSocialURL(t *testing.T) {
	t.Parallel()

	assert.True(t, IsSocialURL("https://facebook.com/acme"))
	assert.True(t, IsSocialURL("https://m.facebook.com/acme"))
	assert.True(t, IsSocialURL("instagram.com/acme"))
	assert.True(t, IsSocialURL("https://wa.me/15551234567"))
	assert.False(t, IsSocialURL("https://notfacebook.com/acme"))
	assert.False(t, IsSocialURL("https://acme.com/contact"))
	assert.False(t, IsSocialURL(""))
}
