package models

import (
	"time"

	"github.com/google/uuid"
)

// LoyaltyMember is a customer enrolled in the loyalty program.
//
// current_points never goes below 0. lifetime_points only decreases when
// a refund reverses a prior earn. current_points <= lifetime_points is
// NOT an invariant: redemption reduces current but not lifetime.
type LoyaltyMember struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	CustomerID   uuid.UUID  `json:"customer_id" db:"customer_id"`
	MemberNumber string     `json:"member_number" db:"member_number"`
	CardBarcode  string     `json:"card_barcode" db:"card_barcode"`
	TierID       *uuid.UUID `json:"tier_id" db:"tier_id"`
	JoinDate     time.Time  `json:"join_date" db:"join_date"`
	ExpiryDate   *time.Time `json:"expiry_date" db:"expiry_date"`

	CurrentPoints  int64 `json:"current_points" db:"current_points"`
	LifetimePoints int64 `json:"lifetime_points" db:"lifetime_points"`

	CardIssued     bool       `json:"card_issued" db:"card_issued"`
	CardIssuedDate *time.Time `json:"card_issued_date" db:"card_issued_date"`
	CardStatus     string     `json:"card_status" db:"card_status"` // active, suspended, expired, lost

	IsActive   bool       `json:"is_active" db:"is_active"`
	IsArchived bool       `json:"is_archived" db:"is_archived"`
	ArchivedAt *time.Time `json:"archived_at" db:"archived_at"`

	DeactivatedAt *time.Time `json:"deactivated_at" db:"deactivated_at"`
	ActivatedAt   *time.Time `json:"activated_at" db:"activated_at"`
	LastActiveAt  *time.Time `json:"last_active_at" db:"last_active_at"`

	// Each self-service inactive->active transition consumes 1.
	// Staff restore does not.
	ReactivationRemaining int `json:"reactivation_remaining" db:"reactivation_remaining"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

func (LoyaltyMember) TableName() string {
	return "loyalty_members"
}

func (LoyaltyMember) CreateTableSQL() string {
	return `
	CREATE TABLE IF NOT EXISTS loyalty_members (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		customer_id UUID UNIQUE NOT NULL REFERENCES customers(id) ON DELETE CASCADE,
		member_number TEXT UNIQUE NOT NULL,
		card_barcode TEXT UNIQUE NOT NULL,
		tier_id UUID REFERENCES loyalty_tiers(id) ON DELETE SET NULL,
		join_date TIMESTAMP WITH TIME ZONE DEFAULT now(),
		expiry_date TIMESTAMP WITH TIME ZONE,
		current_points BIGINT NOT NULL DEFAULT 0 CHECK (current_points >= 0),
		lifetime_points BIGINT NOT NULL DEFAULT 0,
		card_issued BOOLEAN DEFAULT FALSE,
		card_issued_date TIMESTAMP WITH TIME ZONE,
		card_status TEXT DEFAULT 'active' CHECK (card_status IN ('active', 'suspended', 'expired', 'lost')),
		is_active BOOLEAN DEFAULT TRUE,
		is_archived BOOLEAN NOT NULL DEFAULT FALSE,
		archived_at TIMESTAMP WITH TIME ZONE,
		deactivated_at TIMESTAMP WITH TIME ZONE,
		activated_at TIMESTAMP WITH TIME ZONE,
		last_active_at TIMESTAMP WITH TIME ZONE,
		reactivation_remaining INTEGER NOT NULL DEFAULT 3 CHECK (reactivation_remaining >= 0),
		created_at TIMESTAMP WITH TIME ZONE DEFAULT now(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_loyalty_members_member_number ON loyalty_members(member_number);
	CREATE INDEX IF NOT EXISTS idx_loyalty_members_card_barcode ON loyalty_members(card_barcode);
	CREATE INDEX IF NOT EXISTS idx_loyalty_members_archived ON loyalty_members(is_archived);
	`
}
