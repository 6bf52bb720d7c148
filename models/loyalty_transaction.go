package models

import (
	"time"

	"github.com/google/uuid"
)

// Ledger entry types. Positive-delta accrual types also raise
// lifetime_points; refund reverses a prior earn from both balances.
const (
	PointsEarn                = "earn"
	PointsRedeem              = "redeem"
	PointsRedeemProduct       = "redeem_product"
	PointsAdjust              = "adjust"
	PointsExpire              = "expire"
	PointsBonus               = "bonus"
	PointsRefund              = "refund"
	PointsRefundRedeemProduct = "refund_redeem_product"
)

// LoyaltyTransaction is one immutable entry in the points ledger.
// Rows are append-only: never updated, never deleted. The BIGSERIAL id
// fixes creation order so replaying deltas reproduces every
// balance_after snapshot.
type LoyaltyTransaction struct {
	ID              int64      `json:"id" db:"id"`
	MemberID        uuid.UUID  `json:"member_id" db:"member_id"`
	TransactionID   *uuid.UUID `json:"transaction_id" db:"transaction_id"`
	TransactionType string     `json:"transaction_type" db:"transaction_type"`
	Points          int64      `json:"points" db:"points"`
	BalanceAfter    int64      `json:"balance_after" db:"balance_after"`
	Description     string     `json:"description" db:"description"`
	ReferenceCode   string     `json:"reference_code" db:"reference_code"`
	AdjustedBy      *uuid.UUID `json:"adjusted_by" db:"adjusted_by"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

func (LoyaltyTransaction) TableName() string {
	return "loyalty_transactions"
}

func (LoyaltyTransaction) CreateTableSQL() string {
	return `
	CREATE TABLE IF NOT EXISTS loyalty_transactions (
		id BIGSERIAL PRIMARY KEY,
		member_id UUID NOT NULL REFERENCES loyalty_members(id) ON DELETE CASCADE,
		transaction_id UUID REFERENCES transactions(id) ON DELETE SET NULL,
		transaction_type TEXT NOT NULL CHECK (transaction_type IN (
			'earn', 'redeem', 'redeem_product', 'adjust', 'expire', 'bonus', 'refund', 'refund_redeem_product'
		)),
		points BIGINT NOT NULL,
		balance_after BIGINT NOT NULL,
		description TEXT,
		reference_code TEXT,
		adjusted_by UUID REFERENCES users(id) ON DELETE SET NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_loyalty_transactions_member ON loyalty_transactions(member_id);
	CREATE INDEX IF NOT EXISTS idx_loyalty_transactions_sale ON loyalty_transactions(transaction_id);
	`
}
