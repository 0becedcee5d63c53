package extract

import (
	"net/mail"
	"regexp"
	"strings"

	"github.com/sells-group/leadgen/internal/model"
)

var socialChannels = []struct {
	domain  string
	channel model.Channel
}{
	{"facebook.com", model.ChannelMessenger},
	{"fb.com", model.ChannelMessenger},
	{"m.me", model.ChannelMessenger},
	{"messenger.com", model.ChannelMessenger},
	{"instagram.com", model.ChannelInstagram},
	{"wa.me", model.ChannelWhatsApp},
	{"wa.link", model.ChannelWhatsApp},
	{"whatsapp.com", model.ChannelWhatsApp},
	{"linkedin.com", model.ChannelOther},
	{"twitter.com", model.ChannelOther},
	{"x.com", model.ChannelOther},
	{"t.me", model.ChannelOther},
	{"youtube.com", model.ChannelOther},
	{"tiktok.com", model.ChannelOther},
}

// SocialChannel maps a social-profile URL to its channel. The second result
// is false when the host is not on the allow-list.
func SocialChannel(raw string) (model.Channel, bool) {
	host := urlHost(raw)
	for _, s := range socialChannels {
		if host == s.domain || strings.HasSuffix(host, "."+s.domain) {
			return s.channel, true
		}
	}
	return model.ChannelOther, false
}

var phoneLikeRe = regexp.MustCompile(`^[\d+\-() .]{7,}$`)

// ClassifyValue assigns a channel to a free-form contact value, such as the
// contact_info field returned by structured extraction.
func ClassifyValue(value string) model.Channel {
	v := strings.TrimSpace(value)
	if v == "" {
		return model.ChannelOther
	}
	lower := strings.ToLower(v)

	if strings.Contains(lower, "@") {
		addr, err := mail.ParseAddress(strings.TrimPrefix(lower, "mailto:"))
		if err == nil && !strings.Contains(addr.Address, "/") {
			return model.ChannelEmail
		}
	}
	if ch, ok := SocialChannel(v); ok {
		return ch
	}
	switch {
	case strings.Contains(lower, "whatsapp"):
		return model.ChannelWhatsApp
	case strings.Contains(lower, "instagram"):
		return model.ChannelInstagram
	case strings.Contains(lower, "messenger") || strings.Contains(lower, "facebook"):
		return model.ChannelMessenger
	}
	if phoneLikeRe.MatchString(strings.TrimPrefix(lower, "tel:")) {
		return model.ChannelPhone
	}
	return model.ChannelOther
}

func urlHost(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimPrefix(s, "www.")
}
