package services

import (
	"testing"

	"vcspos-server/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func i64(v int64) *int64 { return &v }

func defaultTiers() []models.LoyaltyTier {
	return []models.LoyaltyTier{
		{ID: uuid.New(), Name: "Bronze", MinPoints: 1, MaxPoints: i64(99), PointsMultiplier: 1.0, IsActive: true},
		{ID: uuid.New(), Name: "Silver", MinPoints: 100, MaxPoints: i64(499), PointsMultiplier: 1.25, IsActive: true},
		{ID: uuid.New(), Name: "Gold", MinPoints: 500, MaxPoints: i64(999), PointsMultiplier: 1.5, IsActive: true},
		{ID: uuid.New(), Name: "Platinum", MinPoints: 1000, MaxPoints: nil, PointsMultiplier: 2.0, IsActive: true},
	}
}

func TestResolveTier(t *testing.T) {
	tiers := defaultTiers()

	tests := []struct {
		name     string
		lifetime int64
		want     string
	}{
		{"zero points falls to lowest band", 0, "Bronze"},
		{"bottom of bronze", 1, "Bronze"},
		{"top of bronze", 99, "Bronze"},
		{"bottom of silver", 100, "Silver"},
		{"middle of gold", 750, "Gold"},
		{"top of gold", 999, "Gold"},
		{"bottom of platinum", 1000, "Platinum"},
		{"unbounded top band", 1_000_000, "Platinum"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveTier(tiers, tt.lifetime)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Name)
		})
	}
}

func TestResolveTierSkipsInactive(t *testing.T) {
	tiers := defaultTiers()
	tiers[2].IsActive = false // Gold

	got := ResolveTier(tiers, 750)
	require.NotNil(t, got)
	// 750 sits only in the disabled Gold band, so no active band
	// contains it and the resolver falls back to the lowest active tier.
	assert.Equal(t, "Bronze", got.Name)
}

func TestResolveTierNoTiers(t *testing.T) {
	assert.Nil(t, ResolveTier(nil, 500))
	assert.Nil(t, ResolveTier([]models.LoyaltyTier{{Name: "Off", IsActive: false}}, 500))
}

func TestResolveTierOverlappingBandsPrefersHigherMin(t *testing.T) {
	tiers := []models.LoyaltyTier{
		{Name: "Base", MinPoints: 0, MaxPoints: nil, IsActive: true},
		{Name: "Plus", MinPoints: 500, MaxPoints: nil, IsActive: true},
	}
	got := ResolveTier(tiers, 600)
	require.NotNil(t, got)
	assert.Equal(t, "Plus", got.Name)
}
