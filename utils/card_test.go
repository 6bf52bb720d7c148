package utils

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateMemberNumber(t *testing.T) {
	pattern := regexp.MustCompile(`^VCS\d{2}\d{6}$`)
	year := time.Now().Format("06")

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		n := GenerateMemberNumber()
		require.Regexp(t, pattern, n)
		assert.Equal(t, year, n[3:5])
		seen[n] = struct{}{}
	}
	// Collisions are possible but 100 draws from a million values
	// colliding this badly would mean a broken generator.
	assert.Greater(t, len(seen), 90)
}

func TestGenerateCardBarcode(t *testing.T) {
	for i := 0; i < 100; i++ {
		code := GenerateCardBarcode()
		require.Len(t, code, 13)
		assert.Equal(t, "200", code[:3])
		assert.True(t, ValidEAN13(code), "barcode %s has a bad check digit", code)
	}
}

func TestEAN13CheckDigit(t *testing.T) {
	// Known EAN-13 values.
	assert.Equal(t, 7, EAN13CheckDigit("590123412345"))
	assert.Equal(t, 0, EAN13CheckDigit("000000000000"))
}

func TestValidEAN13(t *testing.T) {
	assert.True(t, ValidEAN13("5901234123457"))
	assert.False(t, ValidEAN13("5901234123456"))
	assert.False(t, ValidEAN13("590123412345"))   // too short
	assert.False(t, ValidEAN13("59012341234578")) // too long
	assert.False(t, ValidEAN13("590123412345a"))
}
