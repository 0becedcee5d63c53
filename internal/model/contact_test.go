package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannel_String(t *testing.T) {
	t.Parallel()

	want := map[Channel]string{
		ChannelOther:     "Other",
		ChannelEmail:     "Email",
		ChannelPhone:     "Phone",
		ChannelWhatsApp:  "WhatsApp",
		ChannelInstagram: "Instagram",
		ChannelMessenger: "Messenger",
	}
	for _, ch := range AllChannels() {
		assert.Equal(t, want[ch], ch.String())
	}
	assert.Equal(t, "Channel(42)", Channel(42).String())
}

func TestParseChannel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Channel
	}{
		{"Email", ChannelEmail},
		{"  phone ", ChannelPhone},
		{"PhoneNo", ChannelPhone},
		{"Others", ChannelOther},
		{"other", ChannelOther},
		{"WHATSAPP", ChannelWhatsApp},
		{"Instagram", ChannelInstagram},
		{"Messenger", ChannelMessenger},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseChannel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseChannel("carrier pigeon")
	assert.Error(t, err)
}

func TestChannel_JSON(t *testing.T) {
	t.Parallel()

	c := ContactCandidate{OwnerEntityID: "e1", Value: "a@b.com", Channel: ChannelEmail}
	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"channel":"Email"`)

	var back ContactCandidate
	require.NoError(t, json.Unmarshal([]byte(`{"value":"x","channel":"Others"}`), &back))
	assert.Equal(t, ChannelOther, back.Channel)

	_, err = json.Marshal(ContactCandidate{Channel: Channel(99)})
	assert.Error(t, err)
}

func TestChannel_IsSocial(t *testing.T) {
	t.Parallel()

	assert.True(t, ChannelWhatsApp.IsSocial())
	assert.True(t, ChannelInstagram.IsSocial())
	assert.True(t, ChannelMessenger.IsSocial())
	assert.False(t, ChannelEmail.IsSocial())
	assert.False(t, ChannelPhone.IsSocial())
	assert.False(t, ChannelOther.IsSocial())
}
