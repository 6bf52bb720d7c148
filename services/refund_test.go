package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRedeemedRewardLine(t *testing.T) {
	tests := []struct {
		name       string
		unitPrice  float64
		subtotal   float64
		pointsCost int64
		want       bool
	}{
		{"free line on a reward product", 0, 0, 150, true},
		{"paid line on a reward product", 120, 120, 150, false},
		{"free line on a regular product", 0, 0, 0, false},
		{"discounted to free but priced", 120, 0, 150, false},
		{"negative price adjustment line", -10, -10, 150, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRedeemedRewardLine(tt.unitPrice, tt.subtotal, tt.pointsCost))
		})
	}
}

func TestParseMemberCardHint(t *testing.T) {
	tests := []struct {
		name   string
		reason string
		want   string
	}{
		{"hint on its own line", "Damaged item\nMember card: 2001234567897", "2001234567897"},
		{"hint only", "Member card: VCS26000123", "VCS26000123"},
		{"case insensitive prefix", "member CARD: 2001234567897", "2001234567897"},
		{"extra whitespace", "  Member card:   2001234567897  ", "2001234567897"},
		{"no hint", "Customer changed their mind", ""},
		{"empty reason", "", ""},
		{"prefix mid-line is ignored", "refund for member card: holder", ""},
		{"first hint wins", "Member card: AAA\nMember card: BBB", "AAA"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseMemberCardHint(tt.reason))
		})
	}
}
