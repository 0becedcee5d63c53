package crawl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSameSite(t *testing.T) {
	t.Parallel()
	tests := []struct {
		base, href string
		want       bool
	}{
		{"https://acme.com", "https://acme.com/team", true},
		{"https://www.acme.com", "https://admissions.acme.com/contact", true},
		{"https://acme.com", "http://ACME.com/about", true},
		{"https://acme.co.uk", "https://other.co.uk/team", false},
		{"https://school.edu.in", "https://school.edu.in/staff", true},
		{"https://acme.com", "https://facebook.com/acme", false},
		{"https://acme.com", "mailto:info@acme.com", false},
		{"https://acme.com", "/relative", false},
		{"http://localhost:8080", "http://localhost:8080/team", true},
	}
	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, SameSite(tt.base, tt.href))
		})
	}
}
