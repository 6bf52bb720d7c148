package services

import (
	"fmt"

	"vcspos-server/models"
)

// ResolveTier maps lifetime points to a tier: the active tier with the
// highest min_points whose band contains the value. When the value
// falls below every band, the lowest active tier is returned so new
// members land on Bronze even if Bronze starts at 1. Returns nil only
// when no active tiers exist.
func ResolveTier(tiers []models.LoyaltyTier, lifetimePoints int64) *models.LoyaltyTier {
	var best *models.LoyaltyTier
	var lowest *models.LoyaltyTier

	for idx := range tiers {
		t := &tiers[idx]
		if !t.IsActive {
			continue
		}
		if lowest == nil || t.MinPoints < lowest.MinPoints {
			lowest = t
		}
		if t.MinPoints > lifetimePoints {
			continue
		}
		if t.MaxPoints != nil && *t.MaxPoints < lifetimePoints {
			continue
		}
		if best == nil || t.MinPoints > best.MinPoints {
			best = t
		}
	}

	if best == nil {
		return lowest
	}
	return best
}

// LoadActiveTiers reads every active tier ordered by min_points.
func LoadActiveTiers(q Querier) ([]models.LoyaltyTier, error) {
	rows, err := q.Query(`
		SELECT id, name, min_points, max_points, discount_percent, points_multiplier, is_active
		FROM loyalty_tiers
		WHERE is_active = TRUE
		ORDER BY min_points`)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiers: %w", err)
	}
	defer rows.Close()

	var tiers []models.LoyaltyTier
	for rows.Next() {
		var t models.LoyaltyTier
		if err := rows.Scan(&t.ID, &t.Name, &t.MinPoints, &t.MaxPoints, &t.DiscountPercent, &t.PointsMultiplier, &t.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan tier: %w", err)
		}
		tiers = append(tiers, t)
	}
	return tiers, rows.Err()
}
