package model

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Channel classifies a contact value. It is a closed set; every switch over
// Channel must handle all members.
type Channel int

const (
	ChannelOther Channel = iota
	ChannelEmail
	ChannelPhone
	ChannelWhatsApp
	ChannelInstagram
	ChannelMessenger
)

// AllChannels returns every channel in declaration order.
func AllChannels() []Channel {
	return []Channel{
		ChannelOther,
		ChannelEmail,
		ChannelPhone,
		ChannelWhatsApp,
		ChannelInstagram,
		ChannelMessenger,
	}
}

func (c Channel) String() string {
	switch c {
	case ChannelOther:
		return "Other"
	case ChannelEmail:
		return "Email"
	case ChannelPhone:
		return "Phone"
	case ChannelWhatsApp:
		return "WhatsApp"
	case ChannelInstagram:
		return "Instagram"
	case ChannelMessenger:
		return "Messenger"
	default:
		return "Channel(" + strconv.Itoa(int(c)) + ")"
	}
}

// IsSocial reports whether the channel is a social-media messaging channel.
func (c Channel) IsSocial() bool {
	switch c {
	case ChannelWhatsApp, ChannelInstagram, ChannelMessenger:
		return true
	case ChannelOther, ChannelEmail, ChannelPhone:
		return false
	default:
		return false
	}
}

// Valid reports whether c is a member of the closed channel set.
func (c Channel) Valid() bool {
	return c >= ChannelOther && c <= ChannelMessenger
}

// ParseChannel maps a label to a Channel. Matching is case-insensitive and
// accepts the legacy spellings "Others" and "PhoneNo".
func ParseChannel(s string) (Channel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "other", "others":
		return ChannelOther, nil
	case "email", "e-mail":
		return ChannelEmail, nil
	case "phone", "phoneno", "phone_no", "phone number":
		return ChannelPhone, nil
	case "whatsapp":
		return ChannelWhatsApp, nil
	case "instagram":
		return ChannelInstagram, nil
	case "messenger", "facebook messenger":
		return ChannelMessenger, nil
	}
	return ChannelOther, eris.Errorf("model: unknown channel %q", s)
}

// MarshalText encodes the channel as its label.
func (c Channel) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, eris.Errorf("model: invalid channel %d", int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText decodes a channel label.
func (c *Channel) UnmarshalText(text []byte) error {
	parsed, err := ParseChannel(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ContactCandidate is one raw contact observation. Many candidates may carry
// the same value; the consolidator absorbs duplicates.
type ContactCandidate struct {
	OwnerEntityID  string  `json:"owner_entity_id"`
	AssociatedName *string `json:"associated_name,omitempty"`
	Value          string  `json:"value"`
	Channel        Channel `json:"channel"`
	SourceURL      string  `json:"source_url"`
}
