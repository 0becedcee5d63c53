package extract

import "strings"

// NormalizePhone reduces a raw phone string to "+<digits>". A leading "00"
// is read as "+". Without an explicit prefix, ten digits get countryCode and
// eleven digits starting with 1 are read as North American. Anything shorter
// than ten or longer than fifteen digits is rejected.
func NormalizePhone(raw, countryCode string) (string, bool) {
	raw = strings.TrimSpace(raw)
	international := strings.HasPrefix(raw, "+")

	var b strings.Builder
	for i := 0; i < len(raw); i++ {
		if isDigit(raw[i]) {
			b.WriteByte(raw[i])
		}
	}
	digits := b.String()

	if !international && strings.HasPrefix(raw, "00") {
		digits = strings.TrimPrefix(digits, "00")
		international = true
	}

	if !international {
		cc := strings.TrimPrefix(countryCode, "+")
		if cc == "" {
			cc = DefaultCountryCode
		}
		switch {
		case len(digits) == 10:
			digits = cc + digits
		case len(digits) == 11 && digits[0] == '1':
		case len(digits) < 10:
			return "", false
		}
	}

	if len(digits) < 10 || len(digits) > 15 || repeated(digits) {
		return "", false
	}
	return "+" + digits, true
}

// repeated reports whether every digit after the country code is the same,
// as in placeholder numbers like 000-000-0000.
func repeated(digits string) bool {
	tail := digits[len(digits)-7:]
	for i := 1; i < len(tail); i++ {
		if tail[i] != tail[0] {
			return false
		}
	}
	return true
}
