package services

import (
	"testing"

	"vcspos-server/models"

	"github.com/stretchr/testify/assert"
)

func TestCalculateEarnedPoints(t *testing.T) {
	tests := []struct {
		name          string
		total         float64
		pesosPerPoint float64
		multiplier    float64
		want          int64
	}{
		{"exact multiple", 100, 10, 1, 10},
		{"remainder is dropped", 109.99, 10, 1, 10},
		{"below one point", 9.99, 10, 1, 0},
		{"zero total", 0, 10, 1, 0},
		{"silver multiplier floors the product", 150, 10, 1.25, 18}, // floor(15 * 1.25)
		{"gold multiplier", 100, 10, 1.5, 15},
		{"platinum doubles", 999, 10, 2, 198},
		{"zero rate falls back to default", 100, 0, 1, 10},
		{"negative rate falls back to default", 100, -5, 1, 10},
		{"zero multiplier treated as 1x", 100, 10, 0, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalculateEarnedPoints(tt.total, tt.pesosPerPoint, tt.multiplier))
		})
	}
}

func TestReplayCurrentBalance(t *testing.T) {
	entries := []models.LoyaltyTransaction{
		{TransactionType: models.PointsEarn, Points: 120, BalanceAfter: 120},
		{TransactionType: models.PointsRedeemProduct, Points: -50, BalanceAfter: 70},
		{TransactionType: models.PointsEarn, Points: 30, BalanceAfter: 100},
		{TransactionType: models.PointsRefund, Points: -30, BalanceAfter: 70},
		{TransactionType: models.PointsRefundRedeemProduct, Points: 50, BalanceAfter: 120},
	}

	// Replaying the deltas from zero reproduces the final balance and
	// every intermediate balance_after snapshot.
	var running int64
	for _, e := range entries {
		running += e.Points
		assert.Equal(t, e.BalanceAfter, running)
	}
	assert.Equal(t, int64(120), ReplayCurrentBalance(entries))
}

func TestReplayLifetime(t *testing.T) {
	entries := []models.LoyaltyTransaction{
		{TransactionType: models.PointsEarn, Points: 100},
		{TransactionType: models.PointsRedeemProduct, Points: -80}, // does not lower lifetime
		{TransactionType: models.PointsBonus, Points: 25},
		{TransactionType: models.PointsRefund, Points: -100},
	}
	assert.Equal(t, int64(25), ReplayLifetime(entries))
}

func TestReplayLifetimeFloorsAtZero(t *testing.T) {
	entries := []models.LoyaltyTransaction{
		{TransactionType: models.PointsEarn, Points: 10},
		{TransactionType: models.PointsRefund, Points: -10},
		{TransactionType: models.PointsRefund, Points: -10},
	}
	assert.Equal(t, int64(0), ReplayLifetime(entries))
}

func TestValidateRedemption(t *testing.T) {
	tests := []struct {
		name         string
		active       bool
		pointsCost   int64
		stock        int64
		quantity     int64
		memberPoints int64
		wantErr      error
	}{
		{"happy path", true, 50, 10, 1, 100, nil},
		{"exact balance", true, 50, 10, 2, 100, nil},
		{"zero quantity", true, 50, 10, 0, 100, ErrInvalidQuantity},
		{"negative quantity", true, 50, 10, -1, 100, ErrInvalidQuantity},
		{"inactive product", false, 50, 10, 1, 100, ErrProductNotFound},
		{"not a reward", true, 0, 10, 1, 100, ErrNotRedeemable},
		{"out of stock", true, 50, 0, 1, 100, ErrInsufficientStock},
		{"stock short of quantity", true, 50, 1, 2, 200, ErrInsufficientStock},
		{"not enough points", true, 50, 10, 1, 49, ErrInsufficientPoints},
		{"quantity scales the cost", true, 50, 10, 3, 100, ErrInsufficientPoints},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRedemption(tt.active, tt.pointsCost, tt.stock, tt.quantity, tt.memberPoints)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
