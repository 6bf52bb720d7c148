package utils

import (
	"regexp"
	"sort"
	"strings"
)

var phonePattern = regexp.MustCompile(`^\d{11,12}$`)

// NormalizePhone strips everything but digits so inputs like
// "+63 917-123-4567" match stored numbers.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, ch := range strings.TrimSpace(raw) {
		if ch >= '0' && ch <= '9' {
			b.WriteRune(ch)
		}
	}
	return b.String()
}

// ValidPhone reports whether a normalized phone has an acceptable
// length (digits only, 11-12).
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// PhoneVariants generates the common stored forms of a phone number.
//
// The app sends digits only, but the DB may contain:
//   - local format:   09xxxxxxxxx
//   - country format: 63xxxxxxxxxx
//   - E.164 with plus: +63xxxxxxxxxx
//
// Looking up all variants avoids false "invalid member credentials"
// when the formats differ.
func PhoneVariants(raw, countryCode string) []string {
	digits := NormalizePhone(raw)
	if digits == "" {
		return nil
	}

	cc := strings.TrimPrefix(strings.TrimSpace(countryCode), "+")
	variants := map[string]struct{}{digits: {}}

	if cc != "" {
		// 09xxxxxxxxx -> cc + 9xxxxxxxxx
		if len(digits) == 11 && strings.HasPrefix(digits, "0") {
			variants[cc+digits[1:]] = struct{}{}
		}

		// cc + 9xxxxxxxxx -> 09xxxxxxxxx
		if len(digits) >= len(cc)+10 && strings.HasPrefix(digits, cc) {
			national := digits[len(cc):]
			if len(national) == 10 {
				variants["0"+national] = struct{}{}
			}
		}

		// Plus-prefixed forms only for country-code numbers.
		for v := range variants {
			if strings.HasPrefix(v, cc) {
				variants["+"+v] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(variants))
	for v := range variants {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// FormatPhoneE164 converts a local-format number (09xxxxxxxxx) to its
// +<cc> form for external SMS providers. Numbers already carrying the
// country code just gain the plus.
func FormatPhoneE164(raw, countryCode string) string {
	digits := NormalizePhone(raw)
	if digits == "" {
		return ""
	}
	cc := strings.TrimPrefix(strings.TrimSpace(countryCode), "+")
	if cc == "" {
		return digits
	}
	if len(digits) == 11 && strings.HasPrefix(digits, "0") {
		digits = cc + digits[1:]
	}
	if !strings.HasPrefix(digits, cc) {
		digits = cc + digits
	}
	return "+" + digits
}

// MaskEmail hides most of an email's local part for UI display.
func MaskEmail(email string) string {
	e := strings.TrimSpace(email)
	at := strings.Index(e, "@")
	if at <= 0 {
		return ""
	}
	name, domain := e[:at], e[at+1:]
	if len(name) <= 2 {
		return name[:1] + "*@" + domain
	}
	return name[:1] + strings.Repeat("*", len(name)-2) + name[len(name)-1:] + "@" + domain
}
