package models

import (
	"time"

	"github.com/google/uuid"
)

// LoyaltyTier is a lifetime-points band granting a discount rate and an
// earn multiplier. Bands are [MinPoints, MaxPoints]; a NULL MaxPoints
// means unbounded.
type LoyaltyTier struct {
	ID               uuid.UUID `json:"id" db:"id"`
	Name             string    `json:"name" db:"name"`
	MinPoints        int64     `json:"min_points" db:"min_points"`
	MaxPoints        *int64    `json:"max_points" db:"max_points"`
	DiscountPercent  float64   `json:"discount_percent" db:"discount_percent"`
	PointsMultiplier float64   `json:"points_multiplier" db:"points_multiplier"`
	Color            string    `json:"color" db:"color"`
	Icon             *string   `json:"icon" db:"icon"`
	Benefits         *string   `json:"benefits" db:"benefits"`
	IsActive         bool      `json:"is_active" db:"is_active"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

func (LoyaltyTier) TableName() string {
	return "loyalty_tiers"
}

func (LoyaltyTier) CreateTableSQL() string {
	return `
	CREATE TABLE IF NOT EXISTS loyalty_tiers (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name TEXT UNIQUE NOT NULL,
		min_points BIGINT NOT NULL DEFAULT 0,
		max_points BIGINT,
		discount_percent NUMERIC(5,2) DEFAULT 0.00,
		points_multiplier NUMERIC(3,2) DEFAULT 1.00,
		color TEXT DEFAULT '#808080',
		icon TEXT,
		benefits TEXT,
		is_active BOOLEAN DEFAULT TRUE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT now(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT now()
	);`
}
