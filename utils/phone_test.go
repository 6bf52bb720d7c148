package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"09171234567", "09171234567"},
		{"+63 917-123-4567", "639171234567"},
		{"(0917) 123 4567", "09171234567"},
		{"  639171234567  ", "639171234567"},
		{"no digits", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePhone(tt.in), "input %q", tt.in)
	}
}

func TestValidPhone(t *testing.T) {
	assert.True(t, ValidPhone("09171234567"))   // 11 digits
	assert.True(t, ValidPhone("639171234567"))  // 12 digits
	assert.False(t, ValidPhone("0917123456"))   // 10 digits
	assert.False(t, ValidPhone("6391712345678")) // 13 digits
	assert.False(t, ValidPhone("0917123456a"))
	assert.False(t, ValidPhone(""))
}

func TestPhoneVariants(t *testing.T) {
	variants := PhoneVariants("09171234567", "63")
	assert.Contains(t, variants, "09171234567")
	assert.Contains(t, variants, "639171234567")
	assert.Contains(t, variants, "+639171234567")

	// Country-format input maps back to the local form as well.
	variants = PhoneVariants("639171234567", "63")
	assert.Contains(t, variants, "639171234567")
	assert.Contains(t, variants, "09171234567")
	assert.Contains(t, variants, "+639171234567")

	// The plus is stripped before matching.
	variants = PhoneVariants("+639171234567", "63")
	assert.Contains(t, variants, "09171234567")

	assert.Empty(t, PhoneVariants("", "63"))
}

func TestFormatPhoneE164(t *testing.T) {
	assert.Equal(t, "+639171234567", FormatPhoneE164("09171234567", "63"))
	assert.Equal(t, "+639171234567", FormatPhoneE164("639171234567", "63"))
	assert.Equal(t, "+639171234567", FormatPhoneE164("+63 917 123 4567", "63"))
	assert.Equal(t, "", FormatPhoneE164("", "63"))
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "j******a@example.com", MaskEmail("jessicaa@example.com"))
	assert.Equal(t, "a*@example.com", MaskEmail("ab@example.com"))
	assert.Equal(t, "a*@example.com", MaskEmail("a@example.com"))
	assert.Equal(t, "", MaskEmail("not-an-email"))
	assert.Equal(t, "", MaskEmail(""))
}
